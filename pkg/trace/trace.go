// Copyright 2021 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trace implements the binary access-trace format ("PINT v0"):
// an 8-byte magic, a fixed 0x38-byte header and a stream of 16-byte
// records, all little-endian. See Reader and Writer.
package trace

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Magic is the 8-byte signature at the start of every trace file.
var Magic = [8]byte{'P', 'I', 'N', 'T', ' ', 'v', '0', 0}

// HeaderSize is the byte size of the fixed header that follows the magic.
const HeaderSize = 0x38

// RecordSize is the byte size of a single trace record.
const RecordSize = 16

// pageMask clears the low 12 bits of an address, the page-alignment rule
// Record.Addr is guaranteed to already satisfy on the wire.
const pageMask = ^uint64(0xfff)

// AccessKind distinguishes a read from a write record.
type AccessKind uint8

const (
	// Read is a load access.
	Read AccessKind = iota
	// Write is a store access.
	Write
)

func (k AccessKind) String() string {
	if k == Write {
		return "Write"
	}
	return "Read"
}

// Record is a single page access event.
type Record struct {
	Time uint64
	Addr uint64 // page-aligned
	Kind AccessKind
}

// Header is the fixed 0x38-byte block following the magic. The record
// count it carries may be stale relative to the stream's actual length;
// Reader trusts the latter.
type Header struct {
	Records       uint64
	Rate          uint64
	LoadMisses    uint64
	LoadAccesses  uint64
	StoreMisses   uint64
	StoreAccesses uint64
}

// ErrBadMagic is returned when a stream doesn't start with Magic.
var ErrBadMagic = errors.New("trace: bad magic")

// ErrShortRead is returned when a stream is truncated mid-record.
var ErrShortRead = errors.New("trace: short read")

// ErrBadKind is returned when a record's low bits don't encode a known
// AccessKind.
var ErrBadKind = errors.New("trace: bad access kind")

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Wrap(ErrShortRead, "reading header")
	}
	h := Header{
		Records:       binary.LittleEndian.Uint64(buf[0:8]),
		Rate:          binary.LittleEndian.Uint64(buf[8:16]),
		LoadMisses:    binary.LittleEndian.Uint64(buf[16:24]),
		LoadAccesses:  binary.LittleEndian.Uint64(buf[24:32]),
		StoreMisses:   binary.LittleEndian.Uint64(buf[32:40]),
		StoreAccesses: binary.LittleEndian.Uint64(buf[40:48]),
	}
	// Remaining 8 bytes (48:56) are padding.
	return h, nil
}

func writeHeader(w io.Writer, h Header) error {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Records)
	binary.LittleEndian.PutUint64(buf[8:16], h.Rate)
	binary.LittleEndian.PutUint64(buf[16:24], h.LoadMisses)
	binary.LittleEndian.PutUint64(buf[24:32], h.LoadAccesses)
	binary.LittleEndian.PutUint64(buf[32:40], h.StoreMisses)
	binary.LittleEndian.PutUint64(buf[40:48], h.StoreAccesses)
	_, err := w.Write(buf)
	return err
}

func decodeRecord(buf []byte) (Record, error) {
	time := binary.LittleEndian.Uint64(buf[0:8])
	addrWithKind := binary.LittleEndian.Uint64(buf[8:16])

	addr := addrWithKind & pageMask
	var kind AccessKind
	switch addrWithKind & 0xfff {
	case 0:
		kind = Read
	case 1:
		kind = Write
	default:
		return Record{}, errors.Wrapf(ErrBadKind, "kind %d", addrWithKind&0xfff)
	}
	return Record{Time: time, Addr: addr, Kind: kind}, nil
}

func encodeRecord(rec Record) []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], rec.Time)
	addrWithKind := (rec.Addr & pageMask) | uint64(rec.Kind)
	binary.LittleEndian.PutUint64(buf[8:16], addrWithKind)
	return buf
}
