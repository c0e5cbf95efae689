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

// AccessKind distinguishes a read from a write access in the journal.
type AccessKind uint8

const (
	// AccessRead is a load access.
	AccessRead AccessKind = iota
	// AccessWrite is a store access.
	AccessWrite
)

// AccessMemKind distinguishes a freshly-mapped access from one to a page
// that already resided somewhere.
type AccessMemKind uint8

const (
	// AccessMapped means this access caused the page's first mapping.
	AccessMapped AccessMemKind = iota
	// AccessResided means the page already existed in the table.
	AccessResided
)

// AccessMem is the tier a journaled access found (or put) its page in.
type AccessMem struct {
	Kind   AccessMemKind
	MemIdx MemIdx
}

// Access is one journaled trace record, after the classifier has run.
type Access struct {
	Time          uint64
	PagePtr       PagePtr
	Kind          AccessKind
	Mem           AccessMem
	PrevTemp      uint64
	CurTemp       uint64
	CausedCooling bool
}

// Migration is one journaled tier transition for a page. The first
// migration for any page always has PrevMemIdx == nil and represents its
// initial mapping.
type Migration struct {
	Time       uint64
	PrevMemIdx *MemIdx
	CurMemIdx  MemIdx
}

// Journal is the append-only statistics log: every access in arrival
// order, plus every page's migration history keyed by PagePtr.
type Journal struct {
	accesses   []Access
	migrations map[PagePtr][]Migration
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{migrations: make(map[PagePtr][]Migration)}
}

// RegisterAccess appends an access to the journal.
func (j *Journal) RegisterAccess(a Access) {
	j.accesses = append(j.accesses, a)
}

// RegisterMigration appends a migration for ptr to the journal.
func (j *Journal) RegisterMigration(ptr PagePtr, m Migration) {
	j.migrations[ptr] = append(j.migrations[ptr], m)
}

// Accesses returns all journaled accesses, in arrival order.
func (j *Journal) Accesses() []Access {
	return j.accesses
}

// Migrations returns all journaled migrations, keyed by page.
func (j *Journal) Migrations() map[PagePtr][]Migration {
	return j.migrations
}
