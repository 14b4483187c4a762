// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package reaper

import (
	"os/exec"
	"testing"
)

// S5 — child retry loop: exec a process, wait for it with a collector
// that replaces it once before finally releasing the slot.
func TestWaitPidsCollectorRetry(t *testing.T) {
	trueBin, err := exec.LookPath("true")
	if err != nil {
		t.Skipf("no 'true' binary available: %v", err)
	}

	first := Spawn(trueBin)
	if first == 0 {
		t.Fatal("expected a nonzero pid from Spawn")
	}

	var calls int
	var replacement int
	collector := func(pid int, exitCode int) int {
		calls++
		if calls == 1 {
			replacement = Spawn(trueBin)
			if replacement == 0 {
				t.Fatal("expected a nonzero replacement pid")
			}
			return replacement
		}
		return 0
	}

	pids := []int{first}
	WaitPids(pids, collector)

	if calls != 2 {
		t.Fatalf("expected exactly two collector invocations, got %d", calls)
	}
	if pids[0] != 0 {
		t.Fatalf("expected the slot to be zeroed after the final collector call, got %d", pids[0])
	}
}

func TestWaitPidsZeroEntriesReturnsImmediately(t *testing.T) {
	// Zero entries are pre-completed; WaitPids must not block.
	done := make(chan struct{})
	go func() {
		WaitPids([]int{0, 0}, nil)
		close(done)
	}()
	<-done
}

func TestWaitPidsNilCollectorZeroesSlot(t *testing.T) {
	trueBin, err := exec.LookPath("true")
	if err != nil {
		t.Skipf("no 'true' binary available: %v", err)
	}
	pid := Spawn(trueBin)
	if pid == 0 {
		t.Fatal("expected a nonzero pid from Spawn")
	}
	pids := []int{pid}
	WaitPids(pids, nil)
	if pids[0] != 0 {
		t.Fatalf("expected slot zeroed, got %d", pids[0])
	}
}

func TestDuplicatePidsAllRewritten(t *testing.T) {
	trueBin, err := exec.LookPath("true")
	if err != nil {
		t.Skipf("no 'true' binary available: %v", err)
	}
	pid := Spawn(trueBin)
	if pid == 0 {
		t.Fatal("expected a nonzero pid from Spawn")
	}
	pids := []int{pid, pid}
	WaitPids(pids, nil)
	if pids[0] != 0 || pids[1] != 0 {
		t.Fatalf("expected both duplicate slots zeroed, got %v", pids)
	}
}
