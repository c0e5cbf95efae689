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

// Command ftmemsim replays a binary access trace against a configured
// memory-tier hierarchy and a HeMem classifier, then writes the
// resulting statistics snapshot as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ftmemsim/ftmemsim/pkg/data"
	"github.com/ftmemsim/ftmemsim/pkg/hemem"
	"github.com/ftmemsim/ftmemsim/pkg/log"
	"github.com/ftmemsim/ftmemsim/pkg/metrics"
	"github.com/ftmemsim/ftmemsim/pkg/sim"
	"github.com/ftmemsim/ftmemsim/pkg/simconfig"
	"github.com/ftmemsim/ftmemsim/pkg/trace"
	_ "github.com/ftmemsim/ftmemsim/pkg/version" // registers -version
)

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, fmt.Sprintf("ftmemsim: "+format+"\n", a...))
	os.Exit(1)
}

func main() {
	optTrace := flag.String("trace", "", "binary trace file to replay")
	optConfig := flag.String("config", "", "simulation configuration file (YAML or JSON)")
	optOutput := flag.String("output", "", "output file for the JSON data snapshot (default: stdout)")
	optMetricsFile := flag.String("metrics-file", "", "write the run's metrics in Prometheus text format to this file")
	optLogFile := flag.String("log-file", "", "log file (default: stderr)")
	optDebug := flag.Bool("debug", false, "print debug output")
	flag.Parse()

	logWriter := os.Stderr
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			exit("opening log file %q: %s", *optLogFile, err)
		}
		defer f.Close()
		logWriter = f
	}
	log.SetLogger(stdlog.New(logWriter, "", stdlog.LstdFlags))
	log.SetDebug(*optDebug)

	if *optTrace == "" || *optConfig == "" {
		exit("missing required -trace and -config")
	}

	cfg, err := simconfig.Load(*optConfig)
	if err != nil {
		exit("loading config %q: %s", *optConfig, err)
	}

	classifier, err := hemem.NewClassifier(cfg.HeMemConfig(), cfg.Tiers())
	if err != nil {
		exit("building classifier: %s", err)
	}

	traceFile, err := os.Open(*optTrace)
	if err != nil {
		exit("opening trace %q: %s", *optTrace, err)
	}
	defer traceFile.Close()

	reader, err := trace.NewReader(traceFile)
	if err != nil {
		exit("reading trace header: %s", err)
	}

	simulator := sim.New(sim.Config{
		TraceSkip:         cfg.TraceSkip,
		DebugOutputPeriod: time.Duration(cfg.DebugOutputPeriodSecs * float64(time.Second)),
	}, classifier, sim.RealClock)

	timeSpan, err := simulator.Run(reader)
	if err != nil {
		exit("running simulation: %s", err)
	}

	var span *data.Range
	if timeSpan != nil {
		span = &data.Range{Start: timeSpan.Start, End: timeSpan.End}
	}
	snapshot := data.FromJournal(classifier.Journal(), span)
	snapshot.Tiers = data.TiersFromClassifier(classifier.Tiers(), classifier.PageTable())

	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		exit("encoding output: %s", err)
	}

	out := os.Stdout
	if *optOutput != "" {
		f, err := os.Create(*optOutput)
		if err != nil {
			exit("opening output %q: %s", *optOutput, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(append(encoded, '\n')); err != nil {
		exit("writing output: %s", err)
	}

	if *optMetricsFile != "" {
		if err := writeMetrics(*optMetricsFile, snapshot); err != nil {
			exit("writing metrics: %s", err)
		}
	}
}

// writeMetrics registers a metrics.Collector over snapshot on a private
// registry and dumps it in the Prometheus text exposition format, for a
// caller that wants run metrics without scraping a live process.
func writeMetrics(path string, snapshot data.Data) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(snapshot)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return err
		}
	}
	return nil
}
