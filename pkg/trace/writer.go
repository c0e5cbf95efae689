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
	"io"

	"github.com/pkg/errors"
)

// Writer emits a binary trace stream: magic, a reserved header, then
// records appended one at a time. Finish must be called exactly once, to
// seek back and stamp the header with the observed record count.
type Writer struct {
	w       io.WriteSeeker
	records uint64
}

// NewWriter writes the magic and a zeroed header placeholder to ws and
// returns a Writer ready to append records.
func NewWriter(ws io.WriteSeeker) (*Writer, error) {
	if _, err := ws.Write(Magic[:]); err != nil {
		return nil, errors.Wrap(err, "writing magic")
	}
	if err := writeHeader(ws, Header{}); err != nil {
		return nil, errors.Wrap(err, "reserving header")
	}
	return &Writer{w: ws}, nil
}

// Write appends a single record.
func (w *Writer) Write(rec Record) error {
	if _, err := w.w.Write(encodeRecord(rec)); err != nil {
		return errors.Wrap(err, "writing record")
	}
	w.records++
	return nil
}

// RecordCount returns how many records have been appended so far, so a
// caller resuming a conversion can decide whether to append or truncate.
func (w *Writer) RecordCount() uint64 {
	return w.records
}

// Finish seeks back to the header and writes the final record count. The
// access/miss counters default to zero; callers that track them can set
// Header fields via FinishWithHeader instead.
func (w *Writer) Finish() error {
	return w.FinishWithHeader(Header{Records: w.records})
}

// FinishWithHeader is like Finish but lets the caller supply rate/miss
// counters alongside the observed record count (which is always
// overwritten with the true count, regardless of what h.Records holds).
func (w *Writer) FinishWithHeader(h Header) error {
	h.Records = w.records
	if _, err := w.w.Seek(int64(len(Magic)), io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking to header")
	}
	if err := writeHeader(w.w, h); err != nil {
		return errors.Wrap(err, "writing final header")
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "seeking back to end")
	}
	return nil
}
