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

package hemem

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/ftmemsim/ftmemsim/pkg/femtoduration"
)

// MemIdx is an opaque tier index. Lower indices name faster tiers.
type MemIdx int

func (m MemIdx) String() string {
	return fmt.Sprintf("mem#%d", int(m))
}

// AccessLatencies carries the informational, femtosecond-precision
// latencies of a tier. The core never consults these for simulation
// decisions; they are carried through to the output data model for an
// external analyzer.
type AccessLatencies struct {
	Read  femtoduration.Duration
	Write femtoduration.Duration
	Fault femtoduration.Duration
}

// MemoryTier is one level of the memory hierarchy.
type MemoryTier struct {
	Name         string
	PageCapacity uint64
	Latencies    AccessLatencies

	pageLen uint64
}

// NewMemoryTier constructs a tier with zero occupancy.
func NewMemoryTier(name string, pageCapacity uint64, latencies AccessLatencies) MemoryTier {
	return MemoryTier{Name: name, PageCapacity: pageCapacity, Latencies: latencies}
}

// Validate reports whether m's latencies are usable: none of Read,
// Write or Fault may be NaN or negative. femtoduration.Duration keeps
// unsigned, unexported fields and its constructors map such input to
// zero, so any Duration built through that package passes this check.
func (m MemoryTier) Validate() error {
	if isInvalidLatencyDuration(m.Latencies.Read) || isInvalidLatencyDuration(m.Latencies.Write) || isInvalidLatencyDuration(m.Latencies.Fault) {
		return errors.Errorf("tier %q: latencies must be non-negative numbers", m.Name)
	}
	return nil
}

func isInvalidLatencyDuration(d femtoduration.Duration) bool {
	nanos := d.Nanos()
	return nanos < 0 || math.IsNaN(nanos)
}

// PageLen returns the number of pages currently resident in the tier.
func (m *MemoryTier) PageLen() uint64 { return m.pageLen }

// IsEmpty reports whether the tier holds no pages.
func (m *MemoryTier) IsEmpty() bool { return m.pageLen == 0 }

// IsFull reports whether the tier is at capacity.
func (m *MemoryTier) IsFull() bool { return m.pageLen >= m.PageCapacity }

// OccupancyPercentage returns 100 * PageLen / PageCapacity, for debug
// reporting; returns 0 for a zero-capacity tier rather than NaN.
func (m *MemoryTier) OccupancyPercentage() float64 {
	if m.PageCapacity == 0 {
		return 0
	}
	return 100.0 * float64(m.pageLen) / float64(m.PageCapacity)
}

// ErrTierFull is returned by Tiers.Reserve when the tier is at capacity.
var ErrTierFull = errors.New("hemem: tier full")

// ErrTierEmpty is returned by Tiers.Release when the tier holds no pages.
var ErrTierEmpty = errors.New("hemem: tier empty")

// ErrAlreadyFastest is returned when asking for a tier faster than the
// fastest one. Non-fatal: callers log and skip.
var ErrAlreadyFastest = errors.New("hemem: already in fastest tier")

// ErrAlreadySlowest is returned when asking for a tier slower than the
// slowest one. Non-fatal: callers log and skip.
var ErrAlreadySlowest = errors.New("hemem: already in slowest tier")

// Tiers is an ordered sequence of MemoryTier, tier 0 fastest.
type Tiers struct {
	tiers []MemoryTier
}

// NewTiers wraps tiers, ordered fastest to slowest, as-is.
func NewTiers(tiers []MemoryTier) *Tiers {
	return &Tiers{tiers: tiers}
}

// Len returns the number of tiers.
func (t *Tiers) Len() int { return len(t.tiers) }

// Tier returns a pointer to the tier at i, for inspection/mutation of its
// occupancy bookkeeping. Panics on an out-of-range index: an invalid
// MemIdx reaching here is a programmer error, never user input.
func (t *Tiers) Tier(i MemIdx) *MemoryTier {
	return &t.tiers[i]
}

// Reserve increments occupancy at i. Fails ErrTierFull if i is at
// capacity.
func (t *Tiers) Reserve(i MemIdx) error {
	tier := t.Tier(i)
	if tier.IsFull() {
		return errors.Wrapf(ErrTierFull, "%s", i)
	}
	tier.pageLen++
	return nil
}

// Release decrements occupancy at i. Fails ErrTierEmpty if i is empty.
func (t *Tiers) Release(i MemIdx) error {
	tier := t.Tier(i)
	if tier.IsEmpty() {
		return errors.Wrapf(ErrTierEmpty, "%s", i)
	}
	tier.pageLen--
	return nil
}

// Migrate moves one page's occupancy from src to dst. A no-op if
// src == dst. Otherwise requires src non-empty and dst non-full,
// checked before either tier is mutated so a failure never
// half-applies.
func (t *Tiers) Migrate(src, dst MemIdx) error {
	if src == dst {
		return nil
	}
	if t.Tier(src).IsEmpty() {
		return errors.Wrapf(ErrTierEmpty, "migrate source %s", src)
	}
	if t.Tier(dst).IsFull() {
		return errors.Wrapf(ErrTierFull, "migrate destination %s", dst)
	}
	if err := t.Reserve(dst); err != nil {
		return errors.Wrap(err, "migrate: reserving destination")
	}
	if err := t.Release(src); err != nil {
		return errors.Wrap(err, "migrate: releasing source")
	}
	return nil
}

// Faster returns the tier index faster than i, or ErrAlreadyFastest if i
// is already the fastest (index 0).
func (t *Tiers) Faster(i MemIdx) (MemIdx, error) {
	if i == 0 {
		return 0, ErrAlreadyFastest
	}
	return i - 1, nil
}

// Slower returns the tier index slower than i, or ErrAlreadySlowest if i
// is already the slowest.
func (t *Tiers) Slower(i MemIdx) (MemIdx, error) {
	if int(i)+1 >= len(t.tiers) {
		return 0, ErrAlreadySlowest
	}
	return i + 1, nil
}
