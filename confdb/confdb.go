// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package confdb stores and retrieves named DUT configuration presets
// in MySQL: hub id, per-ROC DAC/trim tables, per-TBM DAC tables, and the
// pattern-generator program. It persists configuration templates, not
// acquisition results.
package confdb // import "github.com/psi-pxar/pxar/confdb"

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/psi-pxar/pxar/dut"
)

const host = "localhost"

var (
	drvName = "mysql"
	usr     = "username"
	pwd     = "s3cr3t"
)

// DB exposes convenience methods to save and load DUT presets from the
// pxar configuration database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the pxar configuration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("confdb: could not open %q db: %w", dbname, err)
	}

	if err := ping(db, dbname); err != nil {
		return nil, fmt.Errorf("confdb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("confdb: could not ping %q db: %w", dbname, err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Preset is one saved DUT configuration template.
type Preset struct {
	Name      string
	HubID     uint8
	SigDelays map[uint8]uint8
	PGSetup   []dut.PGEntry
	PGSum     uint32
	ROCs      []dut.RocConfig
	TBMs      []dut.TBMConfig
}

// Save upserts preset under its Name, serializing the ROC/TBM/PG tables
// to JSON the way the teacher's DB layer keeps wide free-form payloads
// in a single text column rather than fully normalizing every register.
func (db *DB) Save(ctx context.Context, p Preset) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rocs, err := json.Marshal(p.ROCs)
	if err != nil {
		return fmt.Errorf("confdb: could not marshal ROC table: %w", err)
	}
	tbms, err := json.Marshal(p.TBMs)
	if err != nil {
		return fmt.Errorf("confdb: could not marshal TBM table: %w", err)
	}
	pg, err := json.Marshal(p.PGSetup)
	if err != nil {
		return fmt.Errorf("confdb: could not marshal PG program: %w", err)
	}
	delays, err := json.Marshal(p.SigDelays)
	if err != nil {
		return fmt.Errorf("confdb: could not marshal signal delays: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
INSERT INTO presets (name, hub_id, sig_delays, pg_setup, pg_sum, rocs, tbms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	hub_id=VALUES(hub_id), sig_delays=VALUES(sig_delays), pg_setup=VALUES(pg_setup),
	pg_sum=VALUES(pg_sum), rocs=VALUES(rocs), tbms=VALUES(tbms)
`, p.Name, p.HubID, delays, pg, p.PGSum, rocs, tbms)
	if err != nil {
		return fmt.Errorf("confdb: could not save preset %q: %w", p.Name, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("confdb: context error while saving preset %q: %w", p.Name, err)
	}
	return nil
}

// Load retrieves the preset saved under name.
func (db *DB) Load(ctx context.Context, name string) (Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		p                          Preset
		delays, pg, rocs, tbms     []byte
	)
	p.Name = name

	row := db.db.QueryRowContext(ctx, `
SELECT hub_id, sig_delays, pg_setup, pg_sum, rocs, tbms FROM presets WHERE name=?
`, name)
	if err := row.Scan(&p.HubID, &delays, &pg, &p.PGSum, &rocs, &tbms); err != nil {
		return Preset{}, fmt.Errorf("confdb: could not load preset %q: %w", name, err)
	}

	if err := json.Unmarshal(delays, &p.SigDelays); err != nil {
		return Preset{}, fmt.Errorf("confdb: could not unmarshal signal delays: %w", err)
	}
	if err := json.Unmarshal(pg, &p.PGSetup); err != nil {
		return Preset{}, fmt.Errorf("confdb: could not unmarshal PG program: %w", err)
	}
	if err := json.Unmarshal(rocs, &p.ROCs); err != nil {
		return Preset{}, fmt.Errorf("confdb: could not unmarshal ROC table: %w", err)
	}
	if err := json.Unmarshal(tbms, &p.TBMs); err != nil {
		return Preset{}, fmt.Errorf("confdb: could not unmarshal TBM table: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Preset{}, fmt.Errorf("confdb: context error while loading preset %q: %w", name, err)
	}
	return p, nil
}

// ApplyTo writes p's fields into d as stored, without re-validating
// them, and leaves d.Initialized/d.Programmed untouched.
func (p Preset) ApplyTo(d *dut.DUT) {
	d.HubID = p.HubID
	d.SigDelays = p.SigDelays
	d.PGSetup = p.PGSetup
	d.PGSum = p.PGSum
	d.ROCs = p.ROCs
	d.TBMs = p.TBMs
}

// Names lists every preset saved in the database, most recently updated
// first.
func (db *DB) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, "SELECT name FROM presets ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("confdb: could not list presets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("confdb: could not scan preset name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("confdb: could not scan db for preset names: %w", err)
	}
	return names, nil
}
