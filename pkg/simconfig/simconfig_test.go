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

package simconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftmemsim/ftmemsim/pkg/simconfig"
)

const validYAML = `
trace_skip: 1
debug_output_period_secs: 5
hemem:
  read_hot_threshold: 4
  write_hot_threshold: 2
  global_cooling_threshold: 1000
  memories:
    - name: fast
      page_capacity: 1024
      read_latency_ns: 100
      write_latency_ns: 120
      fault_latency_ns: 300
    - name: slow
      page_capacity: 65536
      read_latency_ns: 400
      write_latency_ns: 450
      fault_latency_ns: 900
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidYAML(t *testing.T) {
	cfg, err := simconfig.Load(writeFile(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), cfg.TraceSkip)
	assert.Equal(t, 5.0, cfg.DebugOutputPeriodSecs)
	assert.Equal(t, uint64(4), cfg.HeMem.ReadHotThreshold)
	require.Len(t, cfg.HeMem.Memories, 2)
	assert.Equal(t, "fast", cfg.HeMem.Memories[0].Name)

	tiers := cfg.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, uint64(1024), tiers[0].PageCapacity)

	hc := cfg.HeMemConfig()
	assert.Equal(t, uint64(4), hc.ReadHotThreshold)
}

func TestLoadValidJSON(t *testing.T) {
	const validJSON = `{"trace_skip":0,"debug_output_period_secs":1,"hemem":{"read_hot_threshold":1,"write_hot_threshold":1,"global_cooling_threshold":1,"memories":[{"name":"only","page_capacity":8}]}}`
	cfg, err := simconfig.Load(writeFile(t, validJSON))
	require.NoError(t, err)
	assert.Equal(t, "only", cfg.HeMem.Memories[0].Name)
}

func TestLoadRejectsNoTiers(t *testing.T) {
	const noTiers = `
hemem:
  read_hot_threshold: 1
  write_hot_threshold: 1
  global_cooling_threshold: 1
  memories: []
`
	_, err := simconfig.Load(writeFile(t, noTiers))
	assert.ErrorIs(t, err, simconfig.ErrConfigInvalid)
}

func TestLoadRejectsZeroThresholds(t *testing.T) {
	const zeroThresholds = `
hemem:
  memories:
    - name: only
      page_capacity: 8
`
	_, err := simconfig.Load(writeFile(t, zeroThresholds))
	assert.ErrorIs(t, err, simconfig.ErrConfigInvalid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := simconfig.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
