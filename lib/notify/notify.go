// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package notify owns the kernel notification descriptor: opening it,
// registering watches, and draining raw event records into a growable
// buffer. It performs no classification of its own — that is lib/watch's
// job, per spec.md's C2/C3 split.
//
// Grounded on the fsnotify inotify backend (retrieved examples
// fsnotify-fsnotify/inotify.go and fsnotify-fsnotify/backend_inotify.go):
// the same inotify_init1/inotify_add_watch/read-loop idiom, but emitting
// raw Records instead of a classified Event, since the core's classifier
// lives a layer up.
package notify

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mask is the fixed event mask the core registers on every watch, per
// spec.md §4.2: attribute change, close-after-write, create, delete,
// delete-self, moved-from, moved-to, do-not-follow-symlinks,
// directories-only.
const Mask uint32 = unix.IN_ATTRIB | unix.IN_CLOSE_WRITE | unix.IN_CREATE |
	unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM |
	unix.IN_MOVED_TO | unix.IN_DONT_FOLLOW | unix.IN_ONLYDIR

// Record is one raw, unclassified inotify event.
type Record struct {
	Wd     int32
	Mask   uint32
	Cookie uint32
	Name   string
}

// Has reports whether flag is set in the record's mask.
func (r Record) Has(flag uint32) bool { return r.Mask&flag != 0 }

// Overflow reports IN_Q_OVERFLOW.
func (r Record) Overflow() bool { return r.Has(unix.IN_Q_OVERFLOW) }

// Ignored reports IN_IGNORED.
func (r Record) Ignored() bool { return r.Has(unix.IN_IGNORED) }

// IsDir reports IN_ISDIR.
func (r Record) IsDir() bool { return r.Has(unix.IN_ISDIR) }

// Reader owns the inotify fd and its read buffer.
type Reader struct {
	fd  int
	buf []byte
}

const initialBufSize = 4096

// Open creates a new inotify instance. A failure is surfaced verbatim (fd
// == -1 equivalent is reported as an error); the core does not retry, per
// spec.md §4.2's "Failure semantics".
func Open() (*Reader, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	return &Reader{fd: fd, buf: make([]byte, initialBufSize)}, nil
}

// Fd returns the underlying file descriptor.
func (r *Reader) Fd() int { return r.fd }

// Close releases the inotify descriptor.
func (r *Reader) Close() error {
	return unix.Close(r.fd)
}

// AddWatch registers path with the fixed core mask and returns its watch
// descriptor, or an error verbatim from the kernel.
func (r *Reader) AddWatch(path string) (int32, error) {
	wd, err := unix.InotifyAddWatch(r.fd, path, Mask)
	if err != nil {
		return -1, err
	}
	return int32(wd), nil
}

// Drain performs one read of the available records, growing the buffer
// and retrying on EINVAL ("buffer too small to fit a filename") as
// spec.md §4.2 and §7 require. It returns the decoded records in kernel
// order, or an error for any other read failure. EINTR is retried
// transparently within this call.
func (r *Reader) Drain() ([]Record, error) {
	for {
		n, err := unix.Read(r.fd, r.buf)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EINVAL {
			r.buf = make([]byte, len(r.buf)*2)
			continue
		}
		if err != nil {
			return nil, err
		}
		return decode(r.buf[:n]), nil
	}
}

func decode(buf []byte) []Record {
	var records []Record
	var offset int
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := int(raw.Len)
		name := ""
		if nameLen > 0 {
			start := offset + unix.SizeofInotifyEvent
			nameBytes := buf[start : start+nameLen]
			if i := indexNUL(nameBytes); i >= 0 {
				nameBytes = nameBytes[:i]
			}
			name = string(nameBytes)
		}
		records = append(records, Record{
			Wd:     raw.Wd,
			Mask:   raw.Mask,
			Cookie: raw.Cookie,
			Name:   name,
		})
		offset += unix.SizeofInotifyEvent + nameLen
	}
	return records
}

// Pending reports whether another read would return data immediately,
// without blocking. The master loop uses this after draining a batch to
// decide whether to keep reading or move on to the alarm/flush steps.
func (r *Reader) Pending() (bool, error) {
	return r.Poll(0)
}

// Poll blocks on the notification fd for the given duration (negative
// means indefinite), returning whether data is ready. EINTR is treated as
// "not ready yet" so the caller's own loop iterates again, per spec.md §5.
func (r *Reader) Poll(timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
