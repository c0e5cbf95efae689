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

package data_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ftmemsim/ftmemsim/pkg/data"
	"github.com/ftmemsim/ftmemsim/pkg/femtoduration"
	"github.com/ftmemsim/ftmemsim/pkg/hemem"
)

func TestFromJournalAndMarshalIsDeterministic(t *testing.T) {
	tiers := []hemem.MemoryTier{
		hemem.NewMemoryTier("fast", 4, hemem.AccessLatencies{}),
	}
	classifier, err := hemem.NewClassifier(hemem.Config{
		ReadHotThreshold:       2,
		WriteHotThreshold:      2,
		GlobalCoolingThreshold: 100,
	}, tiers)
	require.NoError(t, err)

	require.NoError(t, classifier.Handle(0, hemem.NewPagePtr(0x2000), hemem.AccessRead))
	require.NoError(t, classifier.Handle(1, hemem.NewPagePtr(0x1000), hemem.AccessRead))

	d := data.FromJournal(classifier.Journal(), &data.Range{Start: 0, End: 2})

	encoded1, err := json.Marshal(d)
	require.NoError(t, err)
	encoded2, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, string(encoded1), string(encoded2))

	// page_migrations must iterate in ascending PagePtr order, not map
	// order, regardless of insertion order.
	idxLow := indexOf(t, encoded1, `"4096":`)
	idxHigh := indexOf(t, encoded1, `"8192":`)
	require.Less(t, idxLow, idxHigh)
}

func TestTiersFromClassifierReportsOccupancyAndLatencies(t *testing.T) {
	tiers := []hemem.MemoryTier{
		hemem.NewMemoryTier("fast", 4, hemem.AccessLatencies{
			Read: femtoduration.FromNanosF64(10),
		}),
		hemem.NewMemoryTier("slow", 4, hemem.AccessLatencies{}),
	}
	classifier, err := hemem.NewClassifier(hemem.Config{
		ReadHotThreshold: 1000, WriteHotThreshold: 1000, GlobalCoolingThreshold: 1000,
	}, tiers)
	require.NoError(t, err)

	require.NoError(t, classifier.Handle(0, hemem.NewPagePtr(0x1000), hemem.AccessRead))

	got := data.TiersFromClassifier(classifier.Tiers(), classifier.PageTable())
	require.Len(t, got, 2)
	require.Equal(t, "fast", got[0].Name)
	require.Equal(t, uint64(1), got[0].PageLen)
	require.Equal(t, 25.0, got[0].OccupancyPercent)
	require.Equal(t, 10.0, got[0].ReadLatencyNs)
	require.Equal(t, "slow", got[1].Name)
	require.Equal(t, uint64(0), got[1].PageLen)
}

func indexOf(t *testing.T, haystack []byte, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return i
		}
	}
	t.Fatalf("substring %q not found in %s", needle, haystack)
	return -1
}
