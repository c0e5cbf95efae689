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

// Package femtoduration implements a duration type with femtosecond
// precision, used to express memory-tier access latencies too small for
// time.Duration's nanosecond resolution to distinguish meaningfully.
package femtoduration

import (
	"fmt"
	"math"
	"time"
)

// Number of femtoseconds in larger units.
const (
	FemtosPerNano = 1_000_000
	NanosPerSec   = 1_000_000_000
	FemtosPerSec  = FemtosPerNano * NanosPerSec
)

// Duration is a span of time with femtosecond precision.
type Duration struct {
	secs      uint64
	femtoSecs uint64 // 0..FemtosPerSec
}

// FromNanosF64 builds a Duration from a (possibly fractional) number of
// nanoseconds. Negative or non-finite input yields the zero Duration.
func FromNanosF64(nanos float64) Duration {
	if nanos <= 0 || math.IsNaN(nanos) || math.IsInf(nanos, 1) {
		return Duration{}
	}
	secs := uint64(nanos / float64(NanosPerSec))
	remainderNanos := nanos - float64(secs)*float64(NanosPerSec)
	femtoSecs := uint64(remainderNanos * float64(FemtosPerNano))
	return Duration{secs: secs, femtoSecs: femtoSecs}
}

// Nanos returns the duration as floating-point nanoseconds.
func (d Duration) Nanos() float64 {
	return float64(d.secs)*float64(NanosPerSec) + float64(d.femtoSecs)/float64(FemtosPerNano)
}

// IsZero reports whether the duration is exactly zero.
func (d Duration) IsZero() bool {
	return d.secs == 0 && d.femtoSecs == 0
}

// String renders the duration in the smallest unit it fits, the way
// time.Duration does, but down to femtoseconds.
func (d Duration) String() string {
	secs := d.secs % 60
	mins := d.secs / 60 % 60
	hours := d.secs / 60 / 60

	femtos := d.femtoSecs % 1000
	picos := d.femtoSecs / 1000 % 1000
	nanos := d.femtoSecs / 1000 / 1000 % 1000
	micros := d.femtoSecs / 1000 / 1000 / 1000 % 1000
	millis := d.femtoSecs / 1000 / 1000 / 1000 / 1000 % 1000

	switch {
	case hours == 0 && mins == 0 && secs == 0 && millis == 0 && micros == 0 && nanos == 0 && picos == 0 && femtos == 0:
		return "0fs"
	case hours == 0 && mins == 0 && secs == 0 && millis == 0 && micros == 0 && nanos == 0 && picos == 0:
		return fmt.Sprintf("%dfs", femtos)
	case hours == 0 && mins == 0 && secs == 0 && millis == 0 && micros == 0 && nanos == 0:
		return fmt.Sprintf("%d.%03dps", picos, femtos)
	case hours == 0 && mins == 0 && secs == 0 && millis == 0 && micros == 0:
		return fmt.Sprintf("%d.%03d%03dns", nanos, picos, femtos)
	case hours == 0 && mins == 0 && secs == 0 && millis == 0:
		return fmt.Sprintf("%d.%03d%03d%03dµs", micros, nanos, picos, femtos)
	case hours == 0 && mins == 0 && secs == 0:
		return fmt.Sprintf("%d.%03d%03d%03d%03dms", millis, micros, nanos, picos, femtos)
	case hours == 0 && mins == 0:
		return fmt.Sprintf("%d.%03d%03d%03d%03d%03ds", secs, millis, micros, nanos, picos, femtos)
	case hours == 0:
		return fmt.Sprintf("%dm%d.%03d%03d%03d%03d%03ds", mins, secs, millis, micros, nanos, picos, femtos)
	default:
		return fmt.Sprintf("%dh%dm%d.%03d%03d%03d%03d%03ds", hours, mins, secs, millis, micros, nanos, picos, femtos)
	}
}

// MarshalJSON renders the duration as its nanosecond value, the unit
// the external configuration and output data model use.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%g", d.Nanos())), nil
}

// UnmarshalJSON parses a JSON number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var nanos float64
	if _, err := fmt.Sscanf(string(data), "%g", &nanos); err != nil {
		return fmt.Errorf("invalid femtoduration: %w", err)
	}
	*d = FromNanosF64(nanos)
	return nil
}

// AsTimeDuration approximates the duration as a time.Duration, truncating
// sub-nanosecond precision. Useful only for display/debugging.
func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d.Nanos())
}
