// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command syncd is the native core of a live directory-mirroring daemon:
// it reads filesystem change notifications, coalesces move pairs, and
// drives a scripted policy layer that decides what to copy where.
//
// Bootstrap sequence grounded on lsyncd.c's main(): parse args, open
// inotify, open the scripting runtime, register the primitive surface,
// export event-kind and log-level globals, load the runner then the
// config (enforcing the version handshake), call initialize(), enter the
// master loop, tear down. Inotify is opened before the runtime because the
// primitive surface bound into it holds the notification reader. CLI flag parsing uses github.com/alecthomas/kong,
// grounded on cmd/stupgrades/main.go's kong CLI struct.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/calmh/syncd/internal/logger"
	"github.com/calmh/syncd/lib/masterloop"
	"github.com/calmh/syncd/lib/notify"
	"github.com/calmh/syncd/lib/primitives"
	"github.com/calmh/syncd/lib/script"
	"github.com/calmh/syncd/lib/watch"
)

type cli struct {
	Runner        string   `default:"syncd.js" help:"Path to the policy runner script."`
	NoDaemon      bool     `name:"no-daemon" help:"Log to stdout/stderr instead of file/syslog only."`
	PidFile       string   `name:"pidfile" help:"Write the process id to this file at startup."`
	LogFile       string   `name:"log-file" help:"Append-only log destination."`
	Syslog        bool     `help:"Also log to syslog."`
	LogLevel      string   `name:"log-level" default:"normal" enum:"debug,verbose,normal,error" help:"Minimum log level."`
	MetricsListen string   `name:"metrics-listen" help:"If set, serve Prometheus metrics on this address."`
	NoMonitor     bool     `name:"no-monitor" help:"Disable the crash-restart outer supervisor."`
	Config        string   `arg:"" help:"Path to the policy config script."`
	PolicyArgs    []string `arg:"" optional:"" help:"Forwarded verbatim to the config script."`
}

func main() {
	var c cli
	kong.Parse(&c, kong.Name("syncd"), kong.Description(
		"Live directory-mirroring daemon core."))

	if os.Getenv("SYNCD_MONITORED") == "" && !c.NoMonitor {
		monitorMain()
		return
	}

	log := newLogger(c)

	if c.PidFile != "" {
		if err := os.WriteFile(c.PidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
			log.Fatal("cannot write pidfile %q: %v", c.PidFile, err)
		}
		defer os.Remove(c.PidFile)
	}

	if c.MetricsListen != "" {
		serveMetrics(c.MetricsListen, log)
	}

	reset := &masterloop.ResetFlag{}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		for range sig {
			reset.Set()
		}
	}()

	if err := run(c, log, reset); err != nil {
		log.Log(logger.Error|logger.Core, "%v", err)
		os.Exit(1)
	}
}

func newLogger(c cli) *logger.Logger {
	var min logger.Level
	switch c.LogLevel {
	case "debug":
		min = logger.Debug
	case "verbose":
		min = logger.Verbose
	case "error":
		min = logger.Error
	default:
		min = logger.Normal
	}
	log := logger.New(min, !c.NoDaemon)
	if c.LogFile != "" {
		log.SetLogFile(c.LogFile)
	}
	if c.Syslog {
		if err := log.SetSyslog("syncd"); err != nil {
			fmt.Fprintf(os.Stderr, "cannot open syslog: %v\n", err)
			os.Exit(1)
		}
	}
	return log
}

func run(c cli, log *logger.Logger, reset *masterloop.ResetFlag) error {
	if _, err := os.Stat(c.Runner); err != nil {
		return fmt.Errorf("cannot find runner at %s", c.Runner)
	}
	if _, err := os.Stat(c.Config); err != nil {
		return fmt.Errorf("cannot find config file at %s", c.Config)
	}

	nr, err := notify.Open()
	if err != nil {
		return fmt.Errorf("cannot create inotify instance: %w", err)
	}
	defer nr.Close()

	surface := &primitives.Surface{Notify: nr, Logger: log}
	rt := script.New(surface, log, c.PolicyArgs)

	if err := rt.LoadRunner(c.Runner); err != nil {
		return err
	}
	if err := rt.LoadConfig(c.Config); err != nil {
		return err
	}

	rt.Initialize()

	loop := &masterloop.Loop{
		Notify:    nr,
		Coalescer: watch.New(log),
		Runtime:   rt,
		Log:       log,
		Reset:     reset,
	}
	loop.Run()
	return nil
}

func serveMetrics(addr string, log *logger.Logger) {
	mux := newMetricsMux()
	go func() {
		if err := serveHTTP(addr, mux); err != nil {
			log.Log(logger.Error|logger.Core, "metrics listener %q: %v", addr, err)
		}
	}()
}
