// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pxar-srv starts a TDAQ server exposing the DAQ Controller of
// one USB-attached testboard as a set of remote commands: /config
// scans for the board, /init programs the DUT from a named confdb
// preset, /start and /stop bracket an acquisition session, and the
// /events output stream carries drained, decoded events to whatever
// TDAQ consumer subscribes to it.
package main // import "github.com/psi-pxar/pxar/cmd/pxar-srv"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/google/gousb"

	"github.com/psi-pxar/pxar/confdb"
	"github.com/psi-pxar/pxar/daq"
	"github.com/psi-pxar/pxar/dut"
	"github.com/psi-pxar/pxar/program"
	"github.com/psi-pxar/pxar/usbdtb"
)

func main() {
	cmd := flags.New()

	srv := newServer()

	tsrv := tdaq.New(cmd, os.Stdout)
	tsrv.CmdHandle("/config", srv.OnConfig)
	tsrv.CmdHandle("/init", srv.OnInit)
	tsrv.CmdHandle("/start", srv.OnStart)
	tsrv.CmdHandle("/stop", srv.OnStop)
	tsrv.CmdHandle("/quit", srv.OnQuit)

	tsrv.OutputHandle("/events", srv.events)

	err := tsrv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type server struct {
	usbCtx *gousb.Context
	board  *usbdtb.DTB
	dut    *dut.DUT
	prog   *program.Programmer
	ctl    *daq.Controller

	confdbName string
	deserPhase uint8

	out chan []byte
}

func newServer() *server {
	return &server{
		usbCtx:     gousb.NewContext(),
		confdbName: "pxar",
		deserPhase: 4,
		out:        make(chan []byte, 64),
	}
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	boards, err := usbdtb.Scan(srv.usbCtx)
	if err != nil {
		return fmt.Errorf("could not scan for testboards: %w", err)
	}
	if len(boards) == 0 {
		return fmt.Errorf("no testboard found")
	}

	dev, err := srv.usbCtx.OpenDeviceWithVIDPID(boards[0].VendorID, boards[0].ProductID)
	if err != nil {
		return fmt.Errorf("could not open testboard: %w", err)
	}

	msg := log.New(os.Stdout, "pxar-srv: ", 0)
	board, err := usbdtb.Open(dev, msg)
	if err != nil {
		return fmt.Errorf("could not claim testboard: %w", err)
	}
	srv.board = board
	srv.prog = program.New(board, msg)
	srv.ctl = daq.New(board, board, srv.prog, msg)

	return nil
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	preset := dec.ReadStr()
	if preset == "" {
		return fmt.Errorf("empty preset name")
	}

	cdb, err := confdb.Open(srv.confdbName)
	if err != nil {
		return fmt.Errorf("could not open confdb: %w", err)
	}
	defer cdb.Close()

	qctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := cdb.Load(qctx, preset)
	if err != nil {
		return fmt.Errorf("could not load preset %q: %w", preset, err)
	}

	d := dut.New()
	p.ApplyTo(d)
	d.Initialized = true
	srv.dut = d

	if err := srv.prog.ProgramDUT(d); err != nil {
		return fmt.Errorf("could not program DUT: %w", err)
	}
	return nil
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if srv.ctl == nil || srv.dut == nil {
		return fmt.Errorf("server not configured: run /config and /init first")
	}

	if err := srv.ctl.Start(srv.dut, srv.deserPhase); err != nil {
		return fmt.Errorf("could not start DAQ session: %w", err)
	}

	go srv.drain(ctx)
	return nil
}

func (srv *server) drain(ctx tdaq.Context) {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for range tick.C {
		if srv.ctl.State() != daq.Running {
			return
		}
		evts, err := srv.ctl.GetEventBuffer(1 << 16)
		if err != nil {
			ctx.Msg.Errorf("could not drain events: %+v", err)
			return
		}
		for _, ev := range evts {
			buf, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case srv.out <- buf:
			default: // consumer too slow; drop rather than block the drain loop.
			}
		}
	}
}

func (srv *server) events(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case body := <-srv.out:
		dst.Body = body
	}
	return nil
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... decoder-errors=%d", srv.ctl.LastDecoderErrors())
	if err := srv.ctl.Stop(srv.dut); err != nil {
		return fmt.Errorf("could not stop DAQ session: %w", err)
	}
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if srv.board != nil {
		_ = srv.board.Close()
	}
	srv.usbCtx.Close()
	return nil
}
