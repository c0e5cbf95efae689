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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T, cfg Config, caps ...uint64) *Classifier {
	t.Helper()
	tiers := make([]MemoryTier, len(caps))
	for i, capacity := range caps {
		tiers[i] = NewMemoryTier(MemIdx(i).String(), capacity, AccessLatencies{})
	}
	c, err := NewClassifier(cfg, tiers)
	require.NoError(t, err)
	return c
}

func TestNewClassifierRejectsInvalidConfig(t *testing.T) {
	_, err := NewClassifier(Config{}, []MemoryTier{NewMemoryTier("t", 1, AccessLatencies{})})
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestNewClassifierRejectsNoTiers(t *testing.T) {
	_, err := NewClassifier(Config{ReadHotThreshold: 1, WriteHotThreshold: 1, GlobalCoolingThreshold: 1}, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

// TestHandleMapsOnFirstAccess verifies that with a single tier, the
// first access maps the page and journals an initial migration.
func TestHandleMapsOnFirstAccess(t *testing.T) {
	c := newTestClassifier(t, Config{ReadHotThreshold: 10, WriteHotThreshold: 10, GlobalCoolingThreshold: 100}, 4)
	ptr := NewPagePtr(0x1000)

	require.NoError(t, c.Handle(0, ptr, AccessRead))

	accesses := c.Journal().Accesses()
	require.Len(t, accesses, 1)
	assert.Equal(t, AccessMapped, accesses[0].Mem.Kind)
	assert.Equal(t, MemIdx(0), accesses[0].Mem.MemIdx)
	assert.Equal(t, uint64(0), accesses[0].PrevTemp)
	assert.Equal(t, uint64(1), accesses[0].CurTemp)

	migrations := c.Journal().Migrations()[ptr]
	require.Len(t, migrations, 1)
	assert.Nil(t, migrations[0].PrevMemIdx)
	assert.Equal(t, MemIdx(0), migrations[0].CurMemIdx)
}

// TestHandleWarmsPageToFasterTier verifies that a page crossing the hot
// threshold while resident in a slower tier is migrated to a faster one.
func TestHandleWarmsPageToFasterTier(t *testing.T) {
	c := newTestClassifier(t, Config{ReadHotThreshold: 2, WriteHotThreshold: 100, GlobalCoolingThreshold: 1000}, 1, 4)
	ptr := NewPagePtr(0x1000)

	// Force the page to map into the slower tier by filling the fast one.
	require.NoError(t, c.Handle(0, NewPagePtr(0x2000), AccessRead))
	require.NoError(t, c.Handle(1, ptr, AccessRead))
	require.Equal(t, MemIdx(1), c.PageTable().Get(ptr).MemIdx())

	require.NoError(t, c.Handle(2, ptr, AccessRead))

	assert.Equal(t, MemIdx(0), c.PageTable().Get(ptr).MemIdx())

	migrations := c.Journal().Migrations()[ptr]
	require.Len(t, migrations, 2)
	last := migrations[len(migrations)-1]
	require.NotNil(t, last.PrevMemIdx)
	assert.Equal(t, MemIdx(1), *last.PrevMemIdx)
	assert.Equal(t, MemIdx(0), last.CurMemIdx)
}

// TestHandleAllTiersFull verifies that mapping a page when every tier
// is at capacity fails ErrAllTiersFull and nothing is journaled.
func TestHandleAllTiersFull(t *testing.T) {
	c := newTestClassifier(t, Config{ReadHotThreshold: 10, WriteHotThreshold: 10, GlobalCoolingThreshold: 100}, 1)
	require.NoError(t, c.Handle(0, NewPagePtr(0x1000), AccessRead))

	err := c.Handle(1, NewPagePtr(0x2000), AccessRead)
	assert.ErrorIs(t, err, ErrAllTiersFull)
	assert.Empty(t, c.Journal().Migrations()[NewPagePtr(0x2000)])
}

// TestHandleCoolsPageBackToSlowerTier verifies that a hot page whose own
// access triggers a global cooling that drops its adjusted counters back
// below the hot threshold is cooled to the slower tier.
func TestHandleCoolsPageBackToSlowerTier(t *testing.T) {
	c := newTestClassifier(t, Config{ReadHotThreshold: 2, WriteHotThreshold: 100, GlobalCoolingThreshold: 3}, 4, 4)
	ptr := NewPagePtr(0x1000)

	require.NoError(t, c.Handle(0, ptr, AccessRead))
	require.NoError(t, c.Handle(1, ptr, AccessRead))
	assert.Equal(t, MemIdx(0), c.PageTable().Get(ptr).MemIdx())

	// Third read: the counter reaches 3, triggering a global cooling that
	// halves it to 1, below the hot threshold of 2.
	require.NoError(t, c.Handle(2, ptr, AccessRead))
	assert.Equal(t, MemIdx(1), c.PageTable().Get(ptr).MemIdx())
}

// TestHandleGlobalCoolingTriggersOnThreshold covers the CausedCooling
// journal flag and the cooling-before-sampling ordering: CurTemp in the
// triggering access already reflects the adjusted (halved) counters.
func TestHandleGlobalCoolingTriggersOnThreshold(t *testing.T) {
	c := newTestClassifier(t, Config{ReadHotThreshold: 100, WriteHotThreshold: 100, GlobalCoolingThreshold: 4}, 4)
	ptr := NewPagePtr(0x1000)

	require.NoError(t, c.Handle(0, ptr, AccessRead))
	require.NoError(t, c.Handle(1, ptr, AccessRead))
	require.NoError(t, c.Handle(2, ptr, AccessRead))
	require.NoError(t, c.Handle(3, ptr, AccessRead))

	accesses := c.Journal().Accesses()
	last := accesses[len(accesses)-1]
	assert.True(t, last.CausedCooling)
	// Counter hit 4 (>= GlobalCoolingThreshold), triggering a cool tick
	// before CurTemp was sampled, so it reads back halved.
	assert.Equal(t, uint64(2), last.CurTemp)
	assert.Equal(t, uint64(1), c.PageTable().GlobalClock())
}

func TestHandleAccessMonotonicClockTickInvariant(t *testing.T) {
	c := newTestClassifier(t, Config{ReadHotThreshold: 2, WriteHotThreshold: 2, GlobalCoolingThreshold: 3}, 4)
	ptr := NewPagePtr(0x1000)

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, c.Handle(i, ptr, AccessRead))
	}

	page := c.PageTable().Get(ptr)
	assert.LessOrEqual(t, page.clockTick, c.PageTable().GlobalClock())
}
