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

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ftmemsim/ftmemsim/pkg/data"
	"github.com/ftmemsim/ftmemsim/pkg/metrics"
)

func TestCollectorRegistersAndCollects(t *testing.T) {
	snapshot := data.Data{
		TimeSpan: &data.Range{Start: 0, End: 10},
		Tiers: []data.TierInfo{
			{Name: "fast", OccupancyPercent: 50},
			{Name: "slow", OccupancyPercent: 10},
		},
		HeMem: data.HeMemData{
			PageAccesses: []data.PageAccess{
				{Time: 1, PagePtr: 0x1000, CurTemp: 4},
				{Time: 2, PagePtr: 0x2000, CurTemp: 2},
			},
			PageMigrations: map[uint64][]data.PageMigration{
				0x1000: {{Time: 1, CurMemIdx: 0}},
			},
		},
	}

	c := metrics.NewCollector(snapshot)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
		if fam.GetName() == "ftmemsim_accesses_total" {
			require.Equal(t, 2.0, fam.Metric[0].GetGauge().GetValue())
		}
		if fam.GetName() == "ftmemsim_mean_page_temperature" {
			require.Equal(t, 3.0, fam.Metric[0].GetGauge().GetValue())
		}
	}
	require.True(t, found["ftmemsim_tier_occupancy_percent"])
	require.True(t, found["ftmemsim_migrations_total"])
}
