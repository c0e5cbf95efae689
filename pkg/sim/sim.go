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

// Package sim is the simulator driver: a deterministic replay loop over
// a trace, with time-bounded progress reporting and record
// sub-sampling. Its own output (the journal) is deterministic for
// identical inputs; debug reporting is wall-clock driven and is the one
// part of a run this package deliberately excludes from that guarantee.
package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/ftmemsim/ftmemsim/pkg/hemem"
	"github.com/ftmemsim/ftmemsim/pkg/log"
	"github.com/ftmemsim/ftmemsim/pkg/trace"
)

// Clock abstracts time.Now so tests can control report cadence instead
// of sleeping.
type Clock interface {
	Now() time.Time
}

// realClock wires the production time source.
type realClock struct{}

// Now returns the current wall-clock time.
func (realClock) Now() time.Time { return time.Now() }

// RealClock is the Clock production code should wire.
var RealClock Clock = realClock{}

// Config is the driver's own configuration, separate from the
// classifier's thresholds.
type Config struct {
	// TraceSkip processes every TraceSkip+1-th record; 0 means every
	// record.
	TraceSkip uint64
	// DebugOutputPeriod is the wall-clock interval between progress
	// reports.
	DebugOutputPeriod time.Duration
}

// TimeSpan is the [Start, End) range of processed record timestamps.
type TimeSpan struct {
	Start uint64
	End   uint64
}

// Simulator replays a trace against a hemem.Classifier.
type Simulator struct {
	config     Config
	classifier *hemem.Classifier
	clock      Clock
}

// New builds a Simulator over classifier, using clock as its time
// source (sim.RealClock in production).
func New(config Config, classifier *hemem.Classifier, clock Clock) *Simulator {
	return &Simulator{config: config, classifier: classifier, clock: clock}
}

// Run replays every kept record from r through the classifier: step by
// TraceSkip+1, track the processed records' time span, and emit a debug
// report at most once per DebugOutputPeriod. It returns the time span
// of processed records, or nil if none were kept.
//
// Non-monotonic timestamps in the trace are neither rejected nor
// reordered: Run simply tracks the first and last record's time as
// seen, in file order.
func (s *Simulator) Run(r *trace.Reader) (*TimeSpan, error) {
	lastReport := s.clock.Now().Add(-s.config.DebugOutputPeriod)

	totalRecords := r.RecordsRemaining()
	var processed, seen uint64
	var span *TimeSpan

	stride := s.config.TraceSkip + 1
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return nil, errors.Wrap(err, "reading trace record")
		}
		if !ok {
			break
		}
		seen++

		if (seen-1)%stride != 0 {
			continue
		}

		ptr := hemem.NewPagePtr(rec.Addr)
		kind := hemem.AccessRead
		if rec.Kind == trace.Write {
			kind = hemem.AccessWrite
		}
		if err := s.classifier.Handle(rec.Time, ptr, kind); err != nil {
			return nil, errors.Wrapf(err, "handling record at time %d", rec.Time)
		}
		processed++

		if span == nil {
			span = &TimeSpan{Start: rec.Time, End: rec.Time + 1}
		} else {
			span.End = rec.Time + 1
		}

		if now := s.clock.Now(); now.Sub(lastReport) >= s.config.DebugOutputPeriod {
			s.reportProgress(processed, seen, totalRecords)
			lastReport = now
		}
	}

	return span, nil
}

// reportProgress emits a single-line progress report plus the
// classifier's multi-line debug dump.
func (s *Simulator) reportProgress(processed, seen, totalRecords uint64) {
	percent := 100.0
	if totalRecords > 0 {
		percent = 100.0 * float64(seen) / float64(totalRecords)
	}
	log.Infof("progress: %.1f%% (%d records seen, %d processed)", percent, seen, processed)
	log.Infof("%s", s.debugDump())
}

// debugDump renders per-tier occupancy and migration counts as a
// classifier-provided multi-line debug dump.
func (s *Simulator) debugDump() string {
	tiers := s.classifier.Tiers()
	pages := s.classifier.PageTable()

	dump := ""
	for i := 0; i < tiers.Len(); i++ {
		memIdx := hemem.MemIdx(i)
		tier := tiers.Tier(memIdx)
		dump += fmt.Sprintf("  tier %s: %d/%d pages (%.1f%%)\n",
			tier.Name, pages.TierLen(memIdx), tier.PageCapacity, tier.OccupancyPercentage())
	}

	mean, stddev := temperatureStats(pages.Temperatures())
	dump += fmt.Sprintf("  mean page temperature: %.2f (stddev %.2f)\n", mean, stddev)

	accesses := s.classifier.Journal().Accesses()
	migrations := s.classifier.Journal().Migrations()
	totalMigrations := 0
	for _, ms := range migrations {
		totalMigrations += len(ms)
	}
	dump += fmt.Sprintf("  %d accesses, %d pages, %d migrations\n", len(accesses), len(migrations), totalMigrations)

	return dump
}

// temperatureStats computes the mean and population standard deviation of
// temps, for the debug dump's "average temperature ± stddev" line.
// Returns 0, 0 for an empty page table.
func temperatureStats(temps []uint64) (mean, stddev float64) {
	if len(temps) == 0 {
		return 0, 0
	}
	var sum float64
	for _, t := range temps {
		sum += float64(t)
	}
	mean = sum / float64(len(temps))

	var sqDiff float64
	for _, t := range temps {
		d := float64(t) - mean
		sqDiff += d * d
	}
	stddev = math.Sqrt(sqDiff / float64(len(temps)))
	return mean, stddev
}
