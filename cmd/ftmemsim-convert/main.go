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

// Command ftmemsim-convert reads a textual `valgrind --tool=lackey`
// memory-access log from stdin and writes the binary trace format to a
// file. Instructions are dropped; modify records are emitted as a
// write. Timestamps are wall-clock nanoseconds relative to process start.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ftmemsim/ftmemsim/pkg/trace"
	_ "github.com/ftmemsim/ftmemsim/pkg/version" // registers -version
)

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, fmt.Sprintf("ftmemsim-convert: "+format+"\n", a...))
	os.Exit(1)
}

func main() {
	optOutput := flag.String("output", "output.trace", "binary trace file to write")
	flag.Parse()

	out, err := os.Create(*optOutput)
	if err != nil {
		exit("creating output file %q: %s", *optOutput, err)
	}
	defer out.Close()

	writer, err := trace.NewWriter(out)
	if err != nil {
		exit("creating trace writer: %s", err)
	}

	start := time.Now()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()

		var prefix string
		var hexAddr string
		switch {
		case strings.HasPrefix(line, "I "):
			prefix, hexAddr = "I", line[2:]
		case strings.HasPrefix(line, "L "):
			prefix, hexAddr = "L", line[2:]
		case strings.HasPrefix(line, "S "):
			prefix, hexAddr = "S", line[2:]
		case strings.HasPrefix(line, "M "):
			prefix, hexAddr = "M", line[2:]
		default:
			// Not a recognized record line; ignore it.
			continue
		}

		// Instructions are dropped entirely, not even timestamped.
		if prefix == "I" {
			continue
		}

		addr, err := strconv.ParseUint(strings.TrimSpace(hexAddr), 16, 64)
		if err != nil {
			exit("parsing address %q: %s", hexAddr, err)
		}

		kind := trace.Read
		if prefix == "S" || prefix == "M" {
			kind = trace.Write
		}

		record := trace.Record{
			Time: uint64(time.Since(start).Nanoseconds()),
			Addr: addr,
			Kind: kind,
		}
		if err := writer.Write(record); err != nil {
			exit("writing record: %s", err)
		}
	}
	if err := scanner.Err(); err != nil {
		exit("reading input: %s", err)
	}

	if err := writer.Finish(); err != nil {
		exit("finishing trace: %s", err)
	}
}
