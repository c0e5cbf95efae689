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

package trace

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/ftmemsim/ftmemsim/pkg/log"
)

// Reader parses a binary trace stream, yielding records in file order.
type Reader struct {
	header           Header
	recordsRemaining uint64
	r                io.Reader
}

// NewReader validates the magic and header of rs and prepares to read
// records. It computes the actual record count from the stream's length,
// since the header's Records field may be stale; a mismatch is logged as
// a warning, not an error.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(rs, magic); err != nil {
		return nil, errors.Wrap(ErrShortRead, "reading magic")
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, errors.Wrapf(ErrBadMagic, "found %x, expected %x", magic, Magic)
	}

	header, err := readHeader(rs)
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	// rs is now positioned right after the header, at the first record.

	streamLen, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "measuring stream length")
	}
	if _, err := rs.Seek(int64(len(Magic)+HeaderSize), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking back to first record")
	}

	bodyLen := streamLen - int64(len(Magic)+HeaderSize)
	expectedSize := int64(len(Magic)+HeaderSize) + int64(header.Records)*int64(RecordSize)
	if streamLen != expectedSize {
		log.Warnf("trace size differs from header: found %d bytes, header implies %d", streamLen, expectedSize)
	}

	return &Reader{
		header:           header,
		recordsRemaining: uint64((bodyLen + RecordSize - 1) / RecordSize),
		r:                rs,
	}, nil
}

// Header returns the (possibly stale) parsed header.
func (r *Reader) Header() Header {
	return r.header
}

// RecordsRemaining returns how many records are left to read, as derived
// from the stream's actual length. A trailing partial record counts as
// one; Next reports it as ErrShortRead.
func (r *Reader) RecordsRemaining() uint64 {
	return r.recordsRemaining
}

// Next reads the next record. ok is false with a nil error at end of
// stream.
func (r *Reader) Next() (rec Record, ok bool, err error) {
	if r.recordsRemaining == 0 {
		return Record{}, false, nil
	}

	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return Record{}, false, errors.Wrap(ErrShortRead, "reading record")
	}
	rec, err = decodeRecord(buf)
	if err != nil {
		return Record{}, false, err
	}
	r.recordsRemaining--
	return rec, true, nil
}
