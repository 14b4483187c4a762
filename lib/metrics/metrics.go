// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exposes the core's Prometheus counters: events
// classified, children spawned/reaped, overflow occurrences, and watch
// registrations. Purely observational -- nothing here feeds back into
// the single-threaded master loop's decisions.
//
// Grounded on cmd/syncthing/discosrv/stats.go's CounterVec-per-subsystem
// style, narrowed to the core's own namespace.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "core",
		Name:      "events_total",
		Help:      "Number of classified filesystem events dispatched to policy, by kind.",
	}, []string{"kind"})

	OverflowTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "core",
		Name:      "overflow_total",
		Help:      "Number of IN_Q_OVERFLOW records observed.",
	})

	WatchesAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "core",
		Name:      "watches_added_total",
		Help:      "Number of successful add_watch calls.",
	})

	ChildrenSpawned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "core",
		Name:      "children_spawned_total",
		Help:      "Number of successful exec() calls.",
	})

	ChildrenReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "core",
		Name:      "children_reaped_total",
		Help:      "Number of child processes reaped via wait_pids.",
	})

	PendingMoveSlot = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncd",
		Subsystem: "core",
		Name:      "pending_move_slot",
		Help:      "1 if the move-coalescer slot currently holds an unpaired MOVED_FROM, else 0.",
	})
)

func init() {
	prometheus.MustRegister(EventsTotal, OverflowTotal, WatchesAdded, ChildrenSpawned, ChildrenReaped, PendingMoveSlot)
}
