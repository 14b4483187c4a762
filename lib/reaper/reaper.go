// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package reaper spawns child processes on behalf of the policy layer and
// reaps them, dispatching each termination to a named collector and
// supporting pid replacement for retry (spec.md §4.5).
//
// Grounded on cmd/syncthing/monitor.go's child-process lifecycle handling
// (exec.Command, cmd.Wait(), exec.ExitError/syscall.WaitStatus exit-code
// extraction) generalized from syncthing's single supervised subprocess to
// the core's arbitrary named pid-set reaping, and on lsyncd.c's
// l_wait_pids/l_exec for the exact collector/replacement protocol.
package reaper

import (
	"os"
	"syscall"

	"github.com/calmh/syncd/lib/metrics"
)

// Collector is invoked once per reaped pid with its exit code. It returns
// either 0 (slot closed) or a replacement pid to keep waiting on.
type Collector func(pid int, exitCode int) (replacementPid int)

// Spawn forks and execs binary with the given arguments (argv[0] ==
// binary), returning its pid, or 0 on failure. os.StartProcess reports an
// exec failure back to the parent, so a binary that cannot be executed
// also yields 0: no child is left running, nothing is logged here, and
// the failure never reaches WaitPids.
func Spawn(binary string, args ...string) int {
	argv := append([]string{binary}, args...)
	proc, err := os.StartProcess(binary, argv, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		return 0
	}
	// WaitPids reaps via syscall.Wait4(-1, ...) directly, so the
	// os.Process value itself is not waited on here; it only served to
	// fork+exec and hand back the pid, exactly as lsyncd.c's l_exec does.
	return proc.Pid
}

// WaitPids blocks until every nonzero entry in pids has been reaped.
// Zero entries are treated as already complete. Reaped pids not present
// in pids are ignored and their exit status is discarded. If collector is
// nil, a reaped pid's slot is simply zeroed. Implements spec.md §4.5's
// wait_children operation exactly, including duplicate-pid rewriting.
func WaitPids(pids []int, collector Collector) {
	remaining := 0
	for _, p := range pids {
		if p != 0 {
			remaining++
		}
	}
	for remaining > 0 {
		var status syscall.WaitStatus
		wpid, err := syscall.Wait4(-1, &status, 0, nil)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			// No children left to wait for (ECHILD) or a transient
			// error; either way there is nothing more this call can do.
			return
		}
		if !status.Exited() {
			// Spurious wakeup or a signal-terminated child: spec.md §4.5
			// says only normal exits are considered.
			continue
		}

		found := false
		for _, p := range pids {
			if p == wpid {
				found = true
				break
			}
		}
		if !found {
			continue
		}

		metrics.ChildrenReaped.Inc()

		var newPid int
		if collector != nil {
			newPid = collector(wpid, status.ExitStatus())
		}

		for i, p := range pids {
			if p == wpid {
				pids[i] = newPid
				if newPid == 0 {
					remaining--
				}
				// No break: duplicate pid entries are all rewritten.
			}
		}
	}
}
