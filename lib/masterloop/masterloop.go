// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package masterloop implements the core's single-threaded event loop
// (spec.md §4.7): it queries policy for the next alarm, blocks with a
// computed timeout, drains notifications, flushes the coalescer, and
// repeats until the reset flag is set.
//
// Grounded on lsyncd.c's masterloop() (the same alarm-state/select/drain
// structure), generalized from select() to golang.org/x/sys/unix.Poll the
// way the fsnotify/notify examples poll a single fd.
package masterloop

import (
	"sync/atomic"
	"time"

	"github.com/calmh/syncd/internal/clock"
	"github.com/calmh/syncd/internal/logger"
	"github.com/calmh/syncd/lib/notify"
	"github.com/calmh/syncd/lib/script"
	"github.com/calmh/syncd/lib/watch"
)

// notifier is the subset of *notify.Reader the loop depends on, narrowed
// out so tests can drive Run with a fake instead of a real inotify fd.
type notifier interface {
	Poll(timeout time.Duration) (bool, error)
	Drain() ([]notify.Record, error)
	Pending() (bool, error)
}

// coalescer is the subset of *watch.Coalescer the loop depends on.
type coalescer interface {
	Process(d watch.Dispatcher, r notify.Record)
	Flush(d watch.Dispatcher)
}

// ResetFlag is the process-global, signal-set shutdown flag of spec.md's
// Reset Flag: written by signal handlers, polled at every loop boundary.
// It is a single word accessed with sync/atomic, so no locking is
// required even though it is written from another goroutine.
type ResetFlag struct{ v int32 }

// Set requests shutdown. Safe to call from any goroutine.
func (r *ResetFlag) Set() { atomic.StoreInt32(&r.v, 1) }

// IsSet reports whether shutdown has been requested.
func (r *ResetFlag) IsSet() bool { return atomic.LoadInt32(&r.v) != 0 }

// Loop ties together lib/notify, lib/watch, and a script.Runtime,
// implementing spec.md §4.7's steady-state cycle exactly.
type Loop struct {
	Notify    notifier
	Coalescer coalescer
	Runtime   script.Runtime
	Log       *logger.Logger
	Reset     *ResetFlag
}

// Run executes the loop until the reset flag is set.
func (l *Loop) Run() {
	for !l.Reset.IsSet() {
		now := clock.Now()

		// Step 1: query policy for the next alarm.
		state, deadline := l.Runtime.GetAlarm(now)

		var doRead bool
		switch state {
		case script.AlarmOverdue:
			// Step 2: work is already overdue; skip waiting entirely.
			doRead = false
		case script.AlarmAt:
			// Step 3: block with a computed timeout.
			if clock.After(now, deadline) {
				l.Log.Fatal("critical failure, alarm_time is in past!")
			}
			timeout := clock.Sub(deadline, now)
			doRead = l.poll(timeout)
		default: // script.AlarmNone
			// Step 4: block indefinitely.
			doRead = l.poll(-1)
		}

		if l.Reset.IsSet() {
			// Skip the drain but still flush below; the loop condition
			// then ends the loop.
			doRead = false
		}

		// Step 5: drain until the descriptor has nothing pending.
		for doRead {
			records, err := l.Notify.Drain()
			if err != nil {
				l.Log.Log(logger.Error|logger.Core, "notify read: %v", err)
				break
			}
			for _, r := range records {
				if l.Reset.IsSet() {
					return
				}
				l.Coalescer.Process(l.Runtime, r)
			}
			pending, err := l.Notify.Pending()
			if err != nil {
				break
			}
			doRead = pending
		}

		// Step 6: flush any residual buffered MOVED_FROM.
		l.Coalescer.Flush(l.Runtime)

		// Step 7 is implicit: the next loop iteration's get_alarm call is
		// how policy learns what is now due.
	}
}

// poll blocks on the notification fd for the given duration (negative
// means indefinite), returning whether data is ready.
func (l *Loop) poll(timeout time.Duration) bool {
	ready, err := l.Notify.Poll(timeout)
	if err != nil {
		l.Log.Log(logger.Error|logger.Core, "poll: %v", err)
		return false
	}
	return ready
}
