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

// Package simconfig is the external configuration value consumed by the
// simulator core: a plain struct plus a convenience YAML/JSON loader.
// The core itself never reads a path; it takes a parsed Config.
package simconfig

import (
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/ftmemsim/ftmemsim/pkg/femtoduration"
	"github.com/ftmemsim/ftmemsim/pkg/hemem"
)

// Memory is one configured memory tier, fastest first.
type Memory struct {
	Name           string  `json:"name"`
	PageCapacity   uint64  `json:"page_capacity"`
	ReadLatencyNs  float64 `json:"read_latency_ns"`
	WriteLatencyNs float64 `json:"write_latency_ns"`
	FaultLatencyNs float64 `json:"fault_latency_ns"`
}

// HeMem is the classifier's thresholds plus its tier list.
type HeMem struct {
	ReadHotThreshold       uint64   `json:"read_hot_threshold"`
	WriteHotThreshold      uint64   `json:"write_hot_threshold"`
	GlobalCoolingThreshold uint64   `json:"global_cooling_threshold"`
	Memories               []Memory `json:"memories"`
}

// Config is the full external configuration.
type Config struct {
	TraceSkip             uint64  `json:"trace_skip"`
	DebugOutputPeriodSecs float64 `json:"debug_output_period_secs"`
	HeMem                 HeMem   `json:"hemem"`
}

// ErrConfigInvalid wraps Validate's result.
var ErrConfigInvalid = errors.New("simconfig: invalid configuration")

// Validate collects every problem with c rather than stopping at the
// first.
func (c Config) Validate() error {
	var result *multierror.Error
	if len(c.HeMem.Memories) == 0 {
		result = multierror.Append(result, errors.New("simconfig: hemem.memories must have at least one tier"))
	}
	if c.HeMem.ReadHotThreshold == 0 {
		result = multierror.Append(result, errors.New("simconfig: hemem.read_hot_threshold must be > 0"))
	}
	if c.HeMem.WriteHotThreshold == 0 {
		result = multierror.Append(result, errors.New("simconfig: hemem.write_hot_threshold must be > 0"))
	}
	if c.HeMem.GlobalCoolingThreshold == 0 {
		result = multierror.Append(result, errors.New("simconfig: hemem.global_cooling_threshold must be > 0"))
	}
	for _, m := range c.HeMem.Memories {
		if m.PageCapacity == 0 {
			result = multierror.Append(result, errors.Errorf("simconfig: memory %q: page_capacity must be > 0", m.Name))
		}
		if isInvalidLatency(m.ReadLatencyNs) || isInvalidLatency(m.WriteLatencyNs) || isInvalidLatency(m.FaultLatencyNs) {
			result = multierror.Append(result, errors.Errorf("simconfig: memory %q: latencies must be non-negative numbers", m.Name))
		}
	}
	return result.ErrorOrNil()
}

// isInvalidLatency reports whether ns cannot be used as a latency: negative
// or NaN.
func isInvalidLatency(ns float64) bool {
	return ns < 0 || math.IsNaN(ns)
}

// Load reads path and unmarshals it as Config. sigs.k8s.io/yaml accepts
// both YAML and JSON, so no format sniffing is needed.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(ErrConfigInvalid, err.Error())
	}
	return &cfg, nil
}

// HeMemConfig converts the configured thresholds into hemem.Config.
func (c Config) HeMemConfig() hemem.Config {
	return hemem.Config{
		ReadHotThreshold:       c.HeMem.ReadHotThreshold,
		WriteHotThreshold:      c.HeMem.WriteHotThreshold,
		GlobalCoolingThreshold: c.HeMem.GlobalCoolingThreshold,
	}
}

// Tiers converts the configured memories into ordered hemem.MemoryTier
// values, fastest first, as supplied.
func (c Config) Tiers() []hemem.MemoryTier {
	tiers := make([]hemem.MemoryTier, len(c.HeMem.Memories))
	for i, m := range c.HeMem.Memories {
		tiers[i] = hemem.NewMemoryTier(m.Name, m.PageCapacity, hemem.AccessLatencies{
			Read:  femtoduration.FromNanosF64(m.ReadLatencyNs),
			Write: femtoduration.FromNanosF64(m.WriteLatencyNs),
			Fault: femtoduration.FromNanosF64(m.FaultLatencyNs),
		})
	}
	return tiers
}
