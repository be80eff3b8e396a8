// Copyright 2024 The pxar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pxar-ctl watches a run's health over a TCP control channel:
// clients (typically pxar-daq or pxar-srv) send decoder-error-rate
// samples as JSON, and pxar-ctl mails an alert each time a run's rate
// reaches a configurable threshold, up to a maximum number of alerts
// per run.
package main // import "github.com/psi-pxar/pxar/cmd/pxar-ctl"

import (
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"
)

func main() {
	var (
		addr      = flag.String("addr", ":8866", "[ip]:port to listen on")
		threshold = flag.Float64("threshold", 0.01, "decoder-error rate that triggers an alert")
		maxAlerts = flag.Int("max-alerts", 5, "max number of alerts sent per run before going silent")
	)

	flag.Parse()

	log.SetPrefix("pxar-ctl: ")
	log.SetFlags(0)

	srv, err := newServer(*addr, *threshold, *maxAlerts)
	if err != nil {
		log.Fatalf("could not create server: %+v", err)
	}
	log.Printf("running pxar-ctl server on %q...", *addr)
	srv.run()
}

// Sample is one run-health report a DAQ client sends.
type Sample struct {
	Run           int     `json:"run"`
	NumTriggers   uint32  `json:"num_triggers"`
	DecoderErrors uint32  `json:"decoder_errors"`
	Rate          float64 `json:"rate"`
}

// Reply acknowledges a Sample, echoing back whether it crossed the
// alert threshold.
type Reply struct {
	Alerted bool   `json:"alerted"`
	Err     string `json:"err,omitempty"`
}

type server struct {
	conn      net.Listener
	threshold float64
	maxAlerts int
	alerts    map[int]int // run -> number of alerts sent so far
}

func newServer(addr string, threshold float64, maxAlerts int) (*server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %q: %w", addr, err)
	}
	return &server{
		conn:      l,
		threshold: threshold,
		maxAlerts: maxAlerts,
		alerts:    make(map[int]int),
	}, nil
}

func (srv *server) run() {
	defer srv.conn.Close()

	for {
		conn, err := srv.conn.Accept()
		if err != nil {
			log.Printf("could not accept connection: %+v", err)
			continue
		}
		go srv.handle(conn)
	}
}

func (srv *server) handle(conn net.Conn) {
	defer conn.Close()

	for {
		var s Sample
		if err := json.NewDecoder(conn).Decode(&s); err != nil {
			return
		}

		alerted := srv.check(s)
		_ = json.NewEncoder(conn).Encode(Reply{Alerted: alerted})
	}
}

func (srv *server) check(s Sample) bool {
	if s.Rate < srv.threshold {
		return false
	}

	log.Printf("run %d: decoder-error rate %.4f exceeds threshold %.4f (errors=%d/%d)",
		s.Run, s.Rate, srv.threshold, s.DecoderErrors, s.NumTriggers,
	)
	srv.alerts[s.Run]++

	if srv.alerts[s.Run] <= srv.maxAlerts {
		srv.alertMail(s)
	}
	return true
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (srv *server) alertMail(s Sample) {
	if alertMailUsr == "" || alertMailPwd == "" || alertMailSrv == "" || alertMailPort == 0 || len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[pxar-ctl] run %d: decoder-error rate alert", s.Run))
	msg.SetBody("text/plain", fmt.Sprintf(
		"run: %d\nerrors: %d\ntriggers: %d\nrate: %.4f\nthreshold: %.4f\ntime: %s",
		s.Run, s.DecoderErrors, s.NumTriggers, s.Rate, srv.threshold, time.Now().Format(time.RFC3339),
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	if err := dial.DialAndSend(msg); err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
