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

// Package data is the typed, serializable snapshot of a completed run:
// a time span plus the HeMem journal, built once after the simulator
// loop finishes and handed to an external serializer.
package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ftmemsim/ftmemsim/pkg/hemem"
)

// Range is an inclusive-exclusive [Start, End) time span.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// TierInfo is one memory tier's informational metadata, surfaced for an
// external analyzer/grapher; the core itself never consults latencies
// for simulation decisions.
type TierInfo struct {
	Name             string  `json:"name"`
	PageCapacity     uint64  `json:"page_capacity"`
	PageLen          uint64  `json:"page_len"`
	OccupancyPercent float64 `json:"occupancy_percent"`
	ReadLatencyNs    float64 `json:"read_latency_ns"`
	WriteLatencyNs   float64 `json:"write_latency_ns"`
	FaultLatencyNs   float64 `json:"fault_latency_ns"`
}

// PageAccess is one journaled access, in the shape the output carries.
type PageAccess struct {
	Time          uint64 `json:"time"`
	PagePtr       uint64 `json:"page_ptr"`
	Kind          string `json:"kind"`
	Mem           string `json:"mem"`
	MemIdx        int    `json:"mem_idx"`
	PrevTemp      uint64 `json:"prev_temp"`
	CurTemp       uint64 `json:"cur_temp"`
	CausedCooling bool   `json:"caused_cooling"`
}

// PageMigration is one journaled tier transition for a page. PrevMemIdx
// is nil for a page's first migration (its initial mapping).
type PageMigration struct {
	Time       uint64 `json:"time"`
	PrevMemIdx *int   `json:"prev_mem_idx"`
	CurMemIdx  int    `json:"cur_mem_idx"`
}

// HeMemData is the HeMem classifier's contribution to the snapshot.
type HeMemData struct {
	PageAccesses []PageAccess `json:"page_accesses"`
	// PageMigrations is keyed by PagePtr; MarshalJSON below emits it in
	// ascending numeric key order so the encoding is byte-deterministic.
	// Go's encoding/json would sort the decimal-string form of the keys
	// lexicographically ("10000" before "4096"), not numerically.
	PageMigrations map[uint64][]PageMigration `json:"-"`
}

// Data is the complete output snapshot of one simulation run.
type Data struct {
	TimeSpan *Range     `json:"time_span"`
	Tiers    []TierInfo `json:"tiers"`
	HeMem    HeMemData  `json:"hemem"`
}

// TiersFromClassifier builds the informational Tiers slice for a
// completed run, in fastest-to-slowest order.
func TiersFromClassifier(tiers *hemem.Tiers, pages *hemem.PageTable) []TierInfo {
	out := make([]TierInfo, 0, tiers.Len())
	for i := 0; i < tiers.Len(); i++ {
		memIdx := hemem.MemIdx(i)
		tier := tiers.Tier(memIdx)
		out = append(out, TierInfo{
			Name:             tier.Name,
			PageCapacity:     tier.PageCapacity,
			PageLen:          uint64(pages.TierLen(memIdx)),
			OccupancyPercent: tier.OccupancyPercentage(),
			ReadLatencyNs:    tier.Latencies.Read.Nanos(),
			WriteLatencyNs:   tier.Latencies.Write.Nanos(),
			FaultLatencyNs:   tier.Latencies.Fault.Nanos(),
		})
	}
	return out
}

// FromJournal builds a Data snapshot from a completed classifier's
// journal, given the run's observed time span (nil if no record was
// processed).
func FromJournal(j *hemem.Journal, timeSpan *Range) Data {
	accesses := make([]PageAccess, 0, len(j.Accesses()))
	for _, a := range j.Accesses() {
		kind := "read"
		if a.Kind == hemem.AccessWrite {
			kind = "write"
		}
		mem := "resided"
		if a.Mem.Kind == hemem.AccessMapped {
			mem = "mapped"
		}
		accesses = append(accesses, PageAccess{
			Time:          a.Time,
			PagePtr:       uint64(a.PagePtr),
			Kind:          kind,
			Mem:           mem,
			MemIdx:        int(a.Mem.MemIdx),
			PrevTemp:      a.PrevTemp,
			CurTemp:       a.CurTemp,
			CausedCooling: a.CausedCooling,
		})
	}

	migrations := make(map[uint64][]PageMigration, len(j.Migrations()))
	for ptr, ms := range j.Migrations() {
		out := make([]PageMigration, 0, len(ms))
		for _, m := range ms {
			var prev *int
			if m.PrevMemIdx != nil {
				v := int(*m.PrevMemIdx)
				prev = &v
			}
			out = append(out, PageMigration{
				Time:       m.Time,
				PrevMemIdx: prev,
				CurMemIdx:  int(m.CurMemIdx),
			})
		}
		migrations[uint64(ptr)] = out
	}

	return Data{
		TimeSpan: timeSpan,
		HeMem: HeMemData{
			PageAccesses:   accesses,
			PageMigrations: migrations,
		},
	}
}

// SortedPagePtrs returns the keys of PageMigrations in ascending order,
// the iteration order MarshalJSON needs for byte-deterministic output.
func (h HeMemData) SortedPagePtrs() []uint64 {
	ptrs := make([]uint64, 0, len(h.PageMigrations))
	for ptr := range h.PageMigrations {
		ptrs = append(ptrs, ptr)
	}
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })
	return ptrs
}

// MarshalJSON renders page_accesses as-is and page_migrations as a JSON
// object keyed by decimal PagePtr, visited in ascending-key order, so two
// runs over identical input produce byte-identical output.
func (h HeMemData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"page_accesses":`)
	accesses, err := json.Marshal(h.PageAccesses)
	if err != nil {
		return nil, err
	}
	buf.Write(accesses)

	buf.WriteString(`,"page_migrations":{`)
	for i, ptr := range h.SortedPagePtrs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		migrations, err := json.Marshal(h.PageMigrations[ptr])
		if err != nil {
			return nil, err
		}
		buf.WriteString(fmt.Sprintf("%q:", fmt.Sprintf("%d", ptr)))
		buf.Write(migrations)
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}
