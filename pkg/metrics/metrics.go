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

// Package metrics wraps a completed run's data.Data snapshot as a
// prometheus.Collector, so a caller can export a finished run's
// statistics in the Prometheus exposition format. This is additive
// observability over the output: it is never consulted by the
// classifier or the driver for simulation decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftmemsim/ftmemsim/pkg/data"
)

const namespace = "ftmemsim"

// Collector exposes one completed run's Data as Prometheus gauges: per
// tier occupancy, total accesses, total migrations, and mean page
// temperature.
type Collector struct {
	snapshot data.Data

	tierOccupancy  *prometheus.Desc
	totalAccesses  *prometheus.Desc
	totalMigration *prometheus.Desc
	meanTemp       *prometheus.Desc
}

// NewCollector wraps snapshot, describing one tier-occupancy gauge per
// entry in snapshot.Tiers.
func NewCollector(snapshot data.Data) *Collector {
	return &Collector{
		snapshot: snapshot,
		tierOccupancy: prometheus.NewDesc(
			namespace+"_tier_occupancy_percent",
			"Percentage of a memory tier's page capacity in use at run end.",
			[]string{"tier"}, nil,
		),
		totalAccesses: prometheus.NewDesc(
			namespace+"_accesses_total",
			"Total number of journaled page accesses in the run.",
			nil, nil,
		),
		totalMigration: prometheus.NewDesc(
			namespace+"_migrations_total",
			"Total number of journaled page migrations in the run.",
			nil, nil,
		),
		meanTemp: prometheus.NewDesc(
			namespace+"_mean_page_temperature",
			"Mean page temperature (reads + 2*writes) across all journaled accesses.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tierOccupancy
	ch <- c.totalAccesses
	ch <- c.totalMigration
	ch <- c.meanTemp
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, tier := range c.snapshot.Tiers {
		ch <- prometheus.MustNewConstMetric(c.tierOccupancy, prometheus.GaugeValue, tier.OccupancyPercent, tier.Name)
	}

	accesses := c.snapshot.HeMem.PageAccesses
	ch <- prometheus.MustNewConstMetric(c.totalAccesses, prometheus.GaugeValue, float64(len(accesses)))

	totalMigrations := 0
	for _, ms := range c.snapshot.HeMem.PageMigrations {
		totalMigrations += len(ms)
	}
	ch <- prometheus.MustNewConstMetric(c.totalMigration, prometheus.GaugeValue, float64(totalMigrations))

	var tempSum float64
	for _, a := range accesses {
		tempSum += float64(a.CurTemp)
	}
	meanTemp := 0.0
	if len(accesses) > 0 {
		meanTemp = tempSum / float64(len(accesses))
	}
	ch <- prometheus.MustNewConstMetric(c.meanTemp, prometheus.GaugeValue, meanTemp)
}
