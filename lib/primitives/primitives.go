// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package primitives implements the Primitive Surface (spec.md §4.6): nine
// of the ten operations the policy layer may invoke. They are plain Go
// methods, independent of any scripting runtime; lib/script binds each one
// into the embedded runtime's global namespace, keeping the core ignorant
// of policy shape per spec.md §9. The tenth, stackdump, is runtime-specific
// and lives in lib/script.
package primitives

import (
	"os"
	"path/filepath"

	"github.com/calmh/syncd/internal/clock"
	"github.com/calmh/syncd/internal/logger"
	"github.com/calmh/syncd/lib/metrics"
	"github.com/calmh/syncd/lib/notify"
	"github.com/calmh/syncd/lib/reaper"
)

// Surface bundles the resources the nine primitives defined here need.
type Surface struct {
	Notify *notify.Reader
	Logger *logger.Logger
}

// AddWatch implements add_watch(path) -> descriptor.
func (s *Surface) AddWatch(path string) int32 {
	wd, err := s.Notify.AddWatch(path)
	if err != nil {
		// spec.md: "never raises" -- the -1 descriptor is the signal.
		return -1
	}
	metrics.WatchesAdded.Inc()
	return wd
}

// SubDirs implements sub_dirs(path) -> names of subdirectories,
// excluding "." and "..". Falls back to an explicit Stat when the
// filesystem reports DT_UNKNOWN, per spec.md §4.6 and lsyncd.c's
// l_sub_dirs.
func (s *Surface) SubDirs(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		s.Logger.Log(logger.Error|logger.Core, "cannot open dir [%s]: %v", path, err)
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 || e.Type()&os.ModeType == os.ModeType {
			// A symlink needs an explicit stat to tell whether it points
			// at a directory. DT_UNKNOWN (surfaced by os.ReadDir as the
			// all-bits-set sentinel fs.FileMode, which IsDir() would
			// otherwise misreport as true for every entry) needs the
			// same fallback.
			info, err := os.Stat(filepath.Join(path, e.Name()))
			isDir = err == nil && info.IsDir()
		}
		if isDir {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

// RealDir implements real_dir(path) -> canonicalized path with a
// trailing "/", or nothing on failure.
func (s *Surface) RealDir(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		s.Logger.Log(logger.Error|logger.Core, "failure getting absolute path of [%s]", path)
		return "", false
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		s.Logger.Log(logger.Error|logger.Core, "failure getting absolute path of [%s]", path)
		return "", false
	}
	info, err := os.Stat(real)
	if err != nil || !info.IsDir() {
		s.Logger.Log(logger.Error|logger.Core, "failure in real_dir [%s] is not a directory", path)
		return "", false
	}
	if real[len(real)-1] != '/' {
		real += "/"
	}
	return real, true
}

// Exec implements exec(binary, args...) -> pid.
func (s *Surface) Exec(binary string, args ...string) int {
	pid := reaper.Spawn(binary, args...)
	if pid != 0 {
		metrics.ChildrenSpawned.Inc()
	}
	return pid
}

// WaitPids implements wait_pids(pids, collector?).
func (s *Surface) WaitPids(pids []int, collector reaper.Collector) {
	reaper.WaitPids(pids, collector)
}

// Now implements now() -> the current process-time clock in ticks, as
// times(2) reports it. The count starts at the kernel's own origin (boot),
// not at the start of this process.
func (s *Surface) Now() clock.Ticks {
	return clock.Now()
}

// AddupClocks implements addup_clocks(a, b) -> a+b.
func (s *Surface) AddupClocks(a, b clock.Ticks) clock.Ticks {
	return clock.Add(a, b)
}

// Log implements log(level, message).
func (s *Surface) Log(level logger.Level, message string) {
	s.Logger.Log(level, "%s", message)
}

// Terminate implements terminate(code); it never returns.
func (s *Surface) Terminate(code int) {
	os.Exit(code)
}
