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
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// counterBits is the width of the adjusted read/write counters (uint64).
// Shifts are capped at counterBits-1 to avoid the undefined/wrapping
// behavior of an oversized shift and instead saturate to zero.
const counterBits = 64

// pageAddrMask clears the low 12 bits of an address.
const pageAddrMask = ^uint64(0xfff)

// PagePtr is a page-aligned 64-bit address. The zero value is the page
// starting at address 0.
type PagePtr uint64

// NewPagePtr masks off the low 12 bits of addr, page-aligning it.
func NewPagePtr(addr uint64) PagePtr {
	return PagePtr(addr & pageAddrMask)
}

func (p PagePtr) String() string {
	return fmt.Sprintf("%#010x", uint64(p))
}

// Page is the page table's per-page residency and heat record.
type Page struct {
	ptr     PagePtr
	memIdx  MemIdx
	// adjusted read/write counters, current as of clockTick
	readAccesses  uint64
	writeAccesses uint64
	clockTick     uint64
}

// Ptr returns the page's identity.
func (p *Page) Ptr() PagePtr { return p.ptr }

// MemIdx returns the tier the page currently resides in.
func (p *Page) MemIdx() MemIdx { return p.memIdx }

// ReadAccesses returns the adjusted (post-catch-up) read counter.
func (p *Page) ReadAccesses() uint64 { return p.readAccesses }

// WriteAccesses returns the adjusted (post-catch-up) write counter.
func (p *Page) WriteAccesses() uint64 { return p.writeAccesses }

// IsHot reports whether the page is hot under the given thresholds.
func (p *Page) IsHot(readHotThreshold, writeHotThreshold uint64) bool {
	return p.readAccesses >= readHotThreshold || p.writeAccesses >= writeHotThreshold
}

// OverThreshold reports whether either adjusted counter is at or above
// threshold, the condition that triggers a global cooling event.
func (p *Page) OverThreshold(threshold uint64) bool {
	return p.readAccesses >= threshold || p.writeAccesses >= threshold
}

// Temperature ranks a page for coldest-first selection: reads + 2*writes.
func (p *Page) Temperature() uint64 {
	return p.readAccesses + 2*p.writeAccesses
}

// catchUp applies lazy cooling: halves both counters once per cooling
// tick elapsed since the page was last touched, saturating to zero
// rather than shifting by more than bits-1.
func (p *Page) catchUp(globalClock uint64) {
	if p.clockTick > globalClock {
		panic(fmt.Sprintf("page clock tick %d ahead of global clock %d", p.clockTick, globalClock))
	}
	delta := globalClock - p.clockTick
	maxShift := uint64(counterBits - 1)
	if delta > maxShift {
		delta = maxShift
	}
	p.readAccesses >>= delta
	p.writeAccesses >>= delta
	p.clockTick = globalClock
}

// registerRead increments the read counter by one access.
func (p *Page) registerRead() { p.readAccesses++ }

// registerWrite increments the write counter by one access.
func (p *Page) registerWrite() { p.writeAccesses++ }

// ErrAlreadyMapped is returned by PageTable.Insert when ptr is already
// present. It signals a programmer error (the classifier never inserts
// a page it already found in the table) and is treated as fatal.
var ErrAlreadyMapped = errors.New("hemem: page already mapped")

// PageTable is the primary page store plus a secondary per-tier index,
// both mutated only through PageTable's own methods so they never drift
// apart. Cooling is lazy: a single monotonic clock stands in for
// eagerly halving every page's counters.
type PageTable struct {
	pages       map[PagePtr]*Page
	pagesByMem  map[MemIdx]map[PagePtr]struct{}
	globalClock uint64
}

// NewPageTable returns an empty page table with the cooling clock at 0.
func NewPageTable() *PageTable {
	return &PageTable{
		pages:      make(map[PagePtr]*Page),
		pagesByMem: make(map[MemIdx]map[PagePtr]struct{}),
	}
}

// Contains reports whether ptr is mapped.
func (t *PageTable) Contains(ptr PagePtr) bool {
	_, ok := t.pages[ptr]
	return ok
}

// Get returns the page at ptr, caught up to the current cooling clock,
// or nil if ptr isn't mapped.
func (t *PageTable) Get(ptr PagePtr) *Page {
	page, ok := t.pages[ptr]
	if !ok {
		return nil
	}
	page.catchUp(t.globalClock)
	return page
}

// GlobalClock returns the current cooling-clock tick.
func (t *PageTable) GlobalClock() uint64 {
	return t.globalClock
}

// Insert adds a freshly mapped page at memIdx. It fails ErrAlreadyMapped
// if ptr is already present.
func (t *PageTable) Insert(ptr PagePtr, memIdx MemIdx) (*Page, error) {
	if _, ok := t.pages[ptr]; ok {
		return nil, errors.Wrapf(ErrAlreadyMapped, "%s", ptr)
	}
	page := &Page{ptr: ptr, memIdx: memIdx, clockTick: t.globalClock}
	t.pages[ptr] = page
	t.indexInsert(memIdx, ptr)
	return page, nil
}

// MoveResidency updates ptr's tier from its current one to newMem,
// keeping the primary store and the per-tier index consistent.
//
// Panics if ptr isn't mapped, a page-table invariant violation that
// cannot happen through the classifier's public API.
func (t *PageTable) MoveResidency(ptr PagePtr, newMem MemIdx) {
	page, ok := t.pages[ptr]
	if !ok {
		panic(fmt.Sprintf("hemem: MoveResidency of unmapped page %s", ptr))
	}
	page.catchUp(t.globalClock)
	if page.memIdx == newMem {
		return
	}
	t.indexRemove(page.memIdx, ptr)
	t.indexInsert(newMem, ptr)
	page.memIdx = newMem
}

// CoolAllPages advances the global cooling clock by one tick. Pages are
// not touched now; each is lazily caught up the next time it's read or
// mutated.
func (t *PageTable) CoolAllPages() {
	t.globalClock++
}

// ColdestPages returns up to count PagePtrs resident in memIdx, ordered
// by ascending temperature after catch-up, ties broken by ascending
// PagePtr.
func (t *PageTable) ColdestPages(memIdx MemIdx, count int) []PagePtr {
	members := t.pagesByMem[memIdx]
	if len(members) == 0 || count <= 0 {
		return nil
	}

	ptrs := make([]PagePtr, 0, len(members))
	for ptr := range members {
		ptrs = append(ptrs, ptr)
	}

	temps := make(map[PagePtr]uint64, len(ptrs))
	for _, ptr := range ptrs {
		page := t.pages[ptr]
		page.catchUp(t.globalClock)
		temps[ptr] = page.Temperature()
	}

	sort.Slice(ptrs, func(i, j int) bool {
		ti, tj := temps[ptrs[i]], temps[ptrs[j]]
		if ti != tj {
			return ti < tj
		}
		return ptrs[i] < ptrs[j]
	})

	if count > len(ptrs) {
		count = len(ptrs)
	}
	return ptrs[:count]
}

// TierLen returns how many pages are resident in memIdx, for invariant
// checking and debug reporting.
func (t *PageTable) TierLen(memIdx MemIdx) int {
	return len(t.pagesByMem[memIdx])
}

// Temperatures returns every mapped page's current (post-catch-up)
// temperature, for debug-dump summary statistics. Order is unspecified.
func (t *PageTable) Temperatures() []uint64 {
	temps := make([]uint64, 0, len(t.pages))
	for _, page := range t.pages {
		page.catchUp(t.globalClock)
		temps = append(temps, page.Temperature())
	}
	return temps
}

func (t *PageTable) indexInsert(memIdx MemIdx, ptr PagePtr) {
	members, ok := t.pagesByMem[memIdx]
	if !ok {
		members = make(map[PagePtr]struct{})
		t.pagesByMem[memIdx] = members
	}
	members[ptr] = struct{}{}
}

func (t *PageTable) indexRemove(memIdx MemIdx, ptr PagePtr) {
	if members, ok := t.pagesByMem[memIdx]; ok {
		delete(members, ptr)
	}
}
