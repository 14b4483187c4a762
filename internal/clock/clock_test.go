// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package clock

import "testing"

func TestAfterBeforeSimple(t *testing.T) {
	if !After(10, 5) {
		t.Fatal("expected 10 to be after 5")
	}
	if After(5, 10) {
		t.Fatal("did not expect 5 to be after 10")
	}
	if !Before(5, 10) {
		t.Fatal("expected 5 to be before 10")
	}
}

func TestAfterWrapAround(t *testing.T) {
	// A tick counter near the top of its range wrapping past zero must
	// still compare as "after" the value it wrapped from.
	var near Ticks = 1<<63 - 1
	wrapped := near + 3 // wraps into negative territory

	if !After(wrapped, near) {
		t.Fatalf("expected wrapped value %d to be after %d", wrapped, near)
	}
}

func TestAddCommutative(t *testing.T) {
	a, b := Ticks(17), Ticks(4)
	if Add(a, b) != Add(b, a) {
		t.Fatalf("addup_clocks must be commutative: %d != %d", Add(a, b), Add(b, a))
	}
}

func TestSubNonNegativeWhenNotAfter(t *testing.T) {
	if d := Sub(5, 10); d != 0 {
		t.Fatalf("expected zero duration for a deadline not after now, got %v", d)
	}
}

func TestSubPositiveWhenAfter(t *testing.T) {
	deadline := Now() + Ticks(TicksPerSecond)
	now := Now()
	if d := Sub(deadline, now); d <= 0 {
		t.Fatalf("expected a positive duration, got %v", d)
	}
}
