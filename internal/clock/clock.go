// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package clock wraps the kernel's process-time clock (the jiffies-style
// tick counter `times(2)` returns) behind wrap-aware comparison helpers.
package clock

import (
	"time"

	"github.com/tklauser/go-sysconf"
	"golang.org/x/sys/unix"
)

// Ticks is a point in time measured in kernel clock ticks since boot of
// the process-time clock. It wraps around at the width of a long and must
// only be compared with the After/Before helpers below, never with plain
// relational operators.
type Ticks int64

// TicksPerSecond is the kernel's reported clock tick rate, read once at
// package init the way lsyncd reads sysconf(_SC_CLK_TCK) once at startup.
var TicksPerSecond = mustClockTicks()

func mustClockTicks() int64 {
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || hz <= 0 {
		// Every Linux system reports a positive rate; this would indicate a
		// broken libc/kernel ABI assumption, not a recoverable runtime error.
		return 100
	}
	return hz
}

// Now returns the current process-time clock in ticks: the jiffies-since-
// boot value times(2) returns, not the process's own CPU-accounting time
// (which barely advances while the daemon is blocked in poll()).
func Now() Ticks {
	var t unix.Tms
	ticks, _ := unix.Times(&t)
	return Ticks(ticks)
}

// After reports whether a is chronologically after b, using the
// wrap-aware signed-difference comparison borrowed from linux/jiffies.h:
// after(a,b) == (long)(b-a) < 0.
func After(a, b Ticks) bool {
	return int64(b-a) < 0
}

// Before reports whether a is chronologically before b.
func Before(a, b Ticks) bool {
	return After(b, a)
}

// Add returns a+b. Exposed as a function (mirroring the core's
// addup_clocks primitive) so policy code never needs to reach past the
// primitive surface to do clock arithmetic.
func Add(a, b Ticks) Ticks {
	return a + b
}

// Sub returns the duration represented by deadline-now as a time.Duration,
// clamped to zero if deadline is not after now. Used by the master loop to convert an
// absolute deadline into a poll timeout.
func Sub(deadline, now Ticks) time.Duration {
	if !After(deadline, now) {
		return 0
	}
	ticks := int64(deadline - now)
	return time.Duration(ticks) * time.Second / time.Duration(TicksPerSecond)
}
