// Copyright (C) 2026 The syncd Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package notify

import (
	"encoding/binary"
	"testing"

	"golang.org/x/sys/unix"
)

// appendRawEvent writes one synthetic inotify_event record (header plus
// NUL-padded name) to buf, mirroring the kernel's wire layout.
func appendRawEvent(buf []byte, wd int32, mask, cookie uint32, name string) []byte {
	var nameField []byte
	if name != "" {
		padded := len(name) + 1
		if r := padded % 4; r != 0 {
			padded += 4 - r
		}
		nameField = make([]byte, padded)
		copy(nameField, name)
	}

	hdr := make([]byte, unix.SizeofInotifyEvent)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(wd))
	binary.LittleEndian.PutUint32(hdr[4:8], mask)
	binary.LittleEndian.PutUint32(hdr[8:12], cookie)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(nameField)))

	buf = append(buf, hdr...)
	buf = append(buf, nameField...)
	return buf
}

func TestDecodeSingleRecordWithName(t *testing.T) {
	var buf []byte
	buf = appendRawEvent(buf, 3, unix.IN_CREATE, 0, "foo.txt")

	records := decode(buf)
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	r := records[0]
	if r.Wd != 3 || r.Mask != unix.IN_CREATE || r.Name != "foo.txt" {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestDecodeRecordWithoutName(t *testing.T) {
	var buf []byte
	buf = appendRawEvent(buf, 1, unix.IN_IGNORED, 0, "")

	records := decode(buf)
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].Name != "" {
		t.Fatalf("expected an empty name, got %q", records[0].Name)
	}
}

func TestDecodeMultipleRecords(t *testing.T) {
	var buf []byte
	buf = appendRawEvent(buf, 1, unix.IN_MOVED_FROM, 99, "a")
	buf = appendRawEvent(buf, 1, unix.IN_MOVED_TO, 99, "b")

	records := decode(buf)
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}
	if records[0].Cookie != 99 || records[1].Cookie != 99 {
		t.Fatalf("expected matching cookies, got %+v", records)
	}
	if records[0].Name != "a" || records[1].Name != "b" {
		t.Fatalf("unexpected names: %+v", records)
	}
}

func TestRecordHelperMethods(t *testing.T) {
	r := Record{Mask: unix.IN_Q_OVERFLOW}
	if !r.Overflow() {
		t.Fatal("expected Overflow() to report true")
	}
	if r.Ignored() || r.IsDir() {
		t.Fatal("did not expect Ignored or IsDir to be set")
	}

	r2 := Record{Mask: unix.IN_ISDIR | unix.IN_CREATE}
	if !r2.IsDir() || !r2.Has(unix.IN_CREATE) {
		t.Fatalf("expected IsDir and Has(IN_CREATE) to be true, got %+v", r2)
	}
}
