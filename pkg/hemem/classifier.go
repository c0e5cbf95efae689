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

// Package hemem implements the HeMem-style hot/cold page placement
// classifier: its page table with lazily-cooled heat counters, its
// ordered memory tiers, and the statistics journal both feed.
package hemem

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ftmemsim/ftmemsim/pkg/log"
)

// Config holds the per-simulation HeMem thresholds.
type Config struct {
	ReadHotThreshold       uint64
	WriteHotThreshold      uint64
	GlobalCoolingThreshold uint64
}

// Validate checks Config for invalid threshold values, collecting every
// problem found rather than stopping at the first.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.ReadHotThreshold == 0 {
		result = multierror.Append(result, errors.New("hemem: ReadHotThreshold must be > 0"))
	}
	if c.WriteHotThreshold == 0 {
		result = multierror.Append(result, errors.New("hemem: WriteHotThreshold must be > 0"))
	}
	if c.GlobalCoolingThreshold == 0 {
		result = multierror.Append(result, errors.New("hemem: GlobalCoolingThreshold must be > 0"))
	}
	return result.ErrorOrNil()
}

// ErrAllTiersFull is returned when mapping a page finds every tier full.
// Fatal: the caller (the simulator) aborts the run.
var ErrAllTiersFull = errors.New("hemem: all tiers full")

// ErrDestinationFullUncoolable is returned by a migration attempt when
// the destination tier is full and cooling it did not free a page.
// Non-fatal: the page stays in its source tier.
var ErrDestinationFullUncoolable = errors.New("hemem: destination full, uncoolable")

// ErrConfigInvalid wraps a construction-time validation failure, fatal
// before a run starts.
var ErrConfigInvalid = errors.New("hemem: invalid configuration")

// Classifier is the HeMem policy: page table + memory tiers + journal,
// driven one trace record at a time via Handle.
type Classifier struct {
	config  *Config
	tiers   *Tiers
	pages   *PageTable
	journal *Journal
}

// NewClassifier validates config and wraps tiers (fastest-first) and a
// fresh page table and journal into a Classifier.
func NewClassifier(config Config, tiers []MemoryTier) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(ErrConfigInvalid, err.Error())
	}
	if len(tiers) == 0 {
		return nil, errors.Wrap(ErrConfigInvalid, "at least one memory tier is required")
	}
	var result *multierror.Error
	for _, tier := range tiers {
		if err := tier.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(ErrConfigInvalid, err.Error())
	}
	return &Classifier{
		config:  &config,
		tiers:   NewTiers(tiers),
		pages:   NewPageTable(),
		journal: NewJournal(),
	}, nil
}

// Tiers exposes the classifier's memory tiers, e.g. for debug reporting.
func (c *Classifier) Tiers() *Tiers { return c.tiers }

// PageTable exposes the classifier's page table, e.g. for invariant
// checks in tests.
func (c *Classifier) PageTable() *PageTable { return c.pages }

// Journal returns the accumulated statistics journal.
func (c *Classifier) Journal() *Journal { return c.journal }

// mapPage walks the tiers fastest-to-slowest, reserving the first one
// with room, inserting ptr into the page table there and journaling its
// initial migration. Fails ErrAllTiersFull if every tier is full.
func (c *Classifier) mapPage(time uint64, ptr PagePtr) (MemIdx, error) {
	for i := 0; i < c.tiers.Len(); i++ {
		memIdx := MemIdx(i)
		if err := c.tiers.Reserve(memIdx); err != nil {
			log.Debugf("tier %s full, trying next", memIdx)
			continue
		}
		if _, err := c.pages.Insert(ptr, memIdx); err != nil {
			// Programmer error: Handle only calls mapPage for an
			// unmapped ptr.
			panic(fmt.Sprintf("hemem: %s", err))
		}
		c.journal.RegisterMigration(ptr, Migration{Time: time, PrevMemIdx: nil, CurMemIdx: memIdx})
		return memIdx, nil
	}
	return 0, errors.Wrapf(ErrAllTiersFull, "%s", ptr)
}

// migratePage moves ptr from its current tier to dst, cooling dst by one
// page first if it's full. Journals the migration on success.
func (c *Classifier) migratePage(time uint64, ptr PagePtr, dst MemIdx) error {
	page := c.pages.Get(ptr)
	if page == nil {
		panic(fmt.Sprintf("hemem: migratePage of unmapped page %s", ptr))
	}
	src := page.MemIdx()

	if err := c.tiers.Migrate(src, dst); err == nil {
		c.pages.MoveResidency(ptr, dst)
		c.journal.RegisterMigration(ptr, Migration{Time: time, PrevMemIdx: &src, CurMemIdx: dst})
		return nil
	}

	log.Debugf("tier %s full, cooling it before migrating %s into it", dst, ptr)
	cooled := c.coolMemory(time, dst, 1)
	if cooled == 0 {
		return errors.Wrapf(ErrDestinationFullUncoolable, "%s -> %s", src, dst)
	}

	if err := c.tiers.Migrate(src, dst); err != nil {
		// Unreachable: coolMemory just freed at least one page in dst.
		return errors.Wrap(err, "migrating after cooling destination")
	}
	c.pages.MoveResidency(ptr, dst)
	c.journal.RegisterMigration(ptr, Migration{Time: time, PrevMemIdx: &src, CurMemIdx: dst})
	return nil
}

// coolMemory evicts up to count of the coldest pages in memIdx to its
// slower tier, recursing through migratePage. Returns how many pages it
// actually moved.
func (c *Classifier) coolMemory(time uint64, memIdx MemIdx, count int) int {
	moved := 0
	for _, ptr := range c.pages.ColdestPages(memIdx, count) {
		dst, err := c.tiers.Slower(memIdx)
		if err != nil {
			continue
		}
		if err := c.migratePage(time, ptr, dst); err == nil {
			moved++
		}
	}
	return moved
}

// coolPage migrates ptr to the tier slower than its current one.
// Non-fatal ErrAlreadySlowest if it's already in the slowest tier.
func (c *Classifier) coolPage(time uint64, ptr PagePtr) error {
	page := c.pages.Get(ptr)
	dst, err := c.tiers.Slower(page.MemIdx())
	if err != nil {
		return err
	}
	return c.migratePage(time, ptr, dst)
}

// warmPage migrates ptr to the tier faster than its current one.
// Non-fatal ErrAlreadyFastest if it's already in the fastest tier.
func (c *Classifier) warmPage(time uint64, ptr PagePtr) error {
	page := c.pages.Get(ptr)
	dst, err := c.tiers.Faster(page.MemIdx())
	if err != nil {
		return err
	}
	return c.migratePage(time, ptr, dst)
}

// Handle applies one trace access to the classifier: map the page if
// unmapped, register the access, cool globally if it crossed the
// global cooling threshold, then warm or cool the page if its hot/cold
// state flipped, and journal the result.
//
// Cooling-before-sampling: if this access' registration triggers a
// global cooling, that cooling happens before CurTemp is sampled for
// the journal entry, so the recorded temperature already reflects the
// cooling this same access caused.
func (c *Classifier) Handle(time uint64, ptr PagePtr, kind AccessKind) error {
	memKind := AccessResided
	if !c.pages.Contains(ptr) {
		if _, err := c.mapPage(time, ptr); err != nil {
			return errors.Wrap(err, "mapping page")
		}
		memKind = AccessMapped
	}

	page := c.pages.Get(ptr)
	wasHot := page.IsHot(c.config.ReadHotThreshold, c.config.WriteHotThreshold)
	prevTemp := page.Temperature()

	switch kind {
	case AccessRead:
		page.registerRead()
	case AccessWrite:
		page.registerWrite()
	}

	causedCooling := page.OverThreshold(c.config.GlobalCoolingThreshold)
	if causedCooling {
		c.pages.CoolAllPages()
	}

	// Re-fetch: CoolAllPages only advances the clock, but Get is also
	// what applies lazy catch-up, so re-read after any cooling this
	// access triggered.
	page = c.pages.Get(ptr)
	isHot := page.IsHot(c.config.ReadHotThreshold, c.config.WriteHotThreshold)
	curMemIdx := page.MemIdx()
	curTemp := page.Temperature()

	if wasHot && !isHot {
		if err := c.coolPage(time, ptr); err != nil {
			log.Debugf("page %s no longer hot, but could not cool it: %s", ptr, err)
		}
	} else if !wasHot && isHot {
		if err := c.warmPage(time, ptr); err != nil {
			log.Debugf("page %s became hot, but could not warm it: %s", ptr, err)
		}
	}

	c.journal.RegisterAccess(Access{
		Time:          time,
		PagePtr:       ptr,
		Kind:          kind,
		Mem:           AccessMem{Kind: memKind, MemIdx: curMemIdx},
		PrevTemp:      prevTemp,
		CurTemp:       curTemp,
		CausedCooling: causedCooling,
	})

	return nil
}
