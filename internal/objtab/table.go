// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package objtab implements the object table and mark/sweep garbage
// collector described in spec §4.1: a page-indexed id→instance mapping
// with a three-state reachability lattice, finalizers, and weak references.
package objtab

import (
	"github.com/tads3/govm/internal/dbg"
	"github.com/tads3/govm/internal/stats"
	"github.com/tads3/govm/internal/value"
)

// Instance is the polymorphic payload a slot holds. Per the design note on
// "Polymorphism without inheritance" in spec §9, the table itself does not
// know how to trace, finalize, or clean up an instance; it type-asserts the
// instance against the small optional interfaces below, mirroring a
// trait-object table keyed by what each metaclass actually implements.
type Instance interface{}

// RefMarker is implemented by instances that can hold outgoing object
// references. The table only calls MarkRefs when the slot's CanHaveRefs
// hint is set.
type RefMarker interface {
	MarkRefs(mark func(value.ObjID))
}

// Finalizable is implemented by instances with a non-trivial finalizer.
type Finalizable interface {
	HasFinalizer() bool
	InvokeFinalizer()
}

// WeakRefCleaner is implemented by instances that hold weak references of
// their own and need to drop stale ones. isLive reports whether an id is
// still a live (non-deletable) slot.
type WeakRefCleaner interface {
	RemoveStaleWeakRefs(isLive func(value.ObjID) bool)
}

// PostLoadIniter is implemented by instances that called
// Table.RequestPostLoadInit during image/save load and need one-time
// initialization after the whole load completes.
type PostLoadIniter interface {
	PostLoadInit(ensure func(value.ObjID) error) error
}

// Flags are the per-slot bits from spec §3.
type Flags uint16

const (
	FlagFree Flags = 1 << iota
	FlagInRootSet
	FlagInUndo
	FlagTransient
	FlagCanHaveRefs
	FlagCanHaveWeakRefs
	FlagRequestedPostLoadInit
)

// Reachability is the three-state lattice from spec §4.1. A GC pass only
// ever raises a slot's reachability, never lowers it.
type Reachability uint8

const (
	Unreachable Reachability = iota
	FinalizerReachable
	Reachable
)

func (r Reachability) String() string {
	switch r {
	case Unreachable:
		return "unreachable"
	case FinalizerReachable:
		return "finalizer-reachable"
	case Reachable:
		return "reachable"
	default:
		return "invalid"
	}
}

// FinalizeState is the three-state finalization lattice from spec §3.
type FinalizeState uint8

const (
	Unfinalizable FinalizeState = iota
	Finalizable
	Finalized
)

// AllocOpts are the per-object hints passed to Allocate.
type AllocOpts struct {
	InRootSet       bool
	CanHaveRefs     bool
	CanHaveWeakRefs bool
	Transient       bool
}

// slot is one object table entry.
type slot struct {
	instance   Instance
	flags      Flags
	reach      Reachability
	finalize   FinalizeState
	generation uint32 // bumped every time the slot is freed; backs WeakRef
	link       value.ObjID
}

// Thresholds configures when Allocate triggers an automatic full GC pass.
type Thresholds struct {
	PageSize   uint32 // must be a power of two; spec default is 4096
	AllocCount uint64 // run GC after this many allocations since the last pass
	ByteCount  uint64 // run GC after this many bytes allocated since the last pass
}

// DefaultThresholds mirrors the values named in spec §2/§4.1.
func DefaultThresholds() Thresholds {
	return Thresholds{PageSize: 4096, AllocCount: 50000, ByteCount: 16 << 20}
}

// approxInstanceBytes is a fixed per-object accounting unit. The spec asks
// for "a cumulative-bytes counter"; computing instances' true size would
// require reflection over arbitrary metaclass payloads the table doesn't
// own, so this package tracks an allocation-count proxy in byte units,
// which is enough to drive the same threshold-crossing behavior.
const approxInstanceBytes = 64

// Table is the object table and garbage collector.
//
// The zero Table is not ready to use; call New.
type Table struct {
	pageSize uint32
	log2Page uint

	pages [][]slot

	freeHead value.ObjID
	maxUsed  value.ObjID

	allocSinceGC uint64
	bytesSinceGC uint64

	gcEnabled  bool
	thresholds Thresholds

	// roots enumerates ids reachable directly from bytecode-visible state
	// (the stack, imports, globals) that is out of this package's scope.
	// Supplied by the embedding Vm.
	roots func(mark func(value.ObjID))

	// beforeDelete runs between GC step 5 (weak-ref cleanup) and step 7
	// (deletion), giving the undo log (which this package must not import,
	// per the spec's leaves-first dependency order) a chance to run its own
	// gc_remove_stale_weak_refs pass. Supplied by the embedding Vm.
	beforeDelete func()

	pass *passState

	pendingFinalize []value.ObjID

	postLoadRequested []value.ObjID
	postLoadDone      map[value.ObjID]bool
	postLoadRunning   map[value.ObjID]bool

	// reclaimedPerPass tracks how many slots GCPassFinish reclaims per call,
	// a GC-pressure signal a host can surface alongside undo's own
	// MedianUndoDepth.
	reclaimedPerPass stats.Mean
}

// MeanReclaimedPerPass reports the mean number of slots reclaimed per
// completed GC pass over this table's lifetime, for diagnostics.
func (t *Table) MeanReclaimedPerPass() float64 { return t.reclaimedPerPass.Get() }

// New creates an empty object table. If t.PageSize is zero,
// DefaultThresholds().PageSize is used; the other thresholds are taken as given.
func New(t Thresholds) *Table {
	if t.PageSize == 0 {
		t.PageSize = DefaultThresholds().PageSize
	}
	dbg.Assert(t.PageSize&(t.PageSize-1) == 0, "page size must be a power of two, got %d", t.PageSize)

	log2 := uint(0)
	for (uint32(1) << log2) < t.PageSize {
		log2++
	}

	tab := &Table{
		pageSize:   t.PageSize,
		log2Page:   log2,
		thresholds: t,
		gcEnabled:  true,
	}
	// Slot id 0 is reserved invalid. growPages threads new slots onto the
	// free list by prepending, using 0 as the list's own "no next" value,
	// so slot 0 is threaded in first and then immediately buried at the
	// tail with a link of 0 — indistinguishable from the list's end, and
	// so never walked or popped. It simply sits unused forever.
	tab.growPages()
	return tab
}

// SetRootEnumerator installs the callback used to enumerate GC roots that
// live outside the object table (bytecode stack, imports, globals).
func (t *Table) SetRootEnumerator(fn func(mark func(value.ObjID))) {
	t.roots = fn
}

// SetBeforeDelete installs the callback run during a full GC pass between
// weak-reference cleanup and slot deletion; the embedding Vm uses this to
// run the undo log's own weak-reference cleanup (spec §4.1 step 6).
func (t *Table) SetBeforeDelete(fn func()) {
	t.beforeDelete = fn
}

// SetGCEnabled turns automatic GC-before-allocate on or off.
func (t *Table) SetGCEnabled(enabled bool) { t.gcEnabled = enabled }

func (t *Table) idOf(pageIdx, slotIdx uint32) value.ObjID {
	return value.ObjID((pageIdx << t.log2Page) | slotIdx)
}

func (t *Table) split(id value.ObjID) (pageIdx, slotIdx uint32) {
	mask := t.pageSize - 1
	return uint32(id) >> t.log2Page, uint32(id) & mask
}

func (t *Table) slotFor(id value.ObjID) *slot {
	if !id.Valid() {
		return nil
	}
	pageIdx, slotIdx := t.split(id)
	if int(pageIdx) >= len(t.pages) {
		return nil
	}
	return &t.pages[pageIdx][slotIdx]
}

// growPages appends one fresh page of pageSize slots, threading them onto
// the free list.
func (t *Table) growPages() {
	pageIdx := uint32(len(t.pages))
	page := make([]slot, t.pageSize)
	t.pages = append(t.pages, page)

	for i := uint32(0); i < t.pageSize; i++ {
		page[i].flags = FlagFree
		id := t.idOf(pageIdx, i)
		page[i].link = t.freeHead
		t.freeHead = id
	}
}

// maybeRunGC runs a full GC pass if allocation/byte thresholds have been
// crossed since the last pass.
func (t *Table) maybeRunGC() {
	if !t.gcEnabled || t.pass != nil {
		return
	}
	if t.allocSinceGC >= t.thresholds.AllocCount || t.bytesSinceGC >= t.thresholds.ByteCount {
		t.FullGC()
	}
}

// Allocate claims a free slot and installs instance in it. See spec §4.1
// "allocate(in_root_set, can_have_refs, can_have_weak_refs) → id".
func (t *Table) Allocate(instance Instance, opts AllocOpts) value.ObjID {
	t.maybeRunGC()

	if t.freeHead == 0 {
		t.growPages()
		if t.freeHead == 0 {
			// Freshly grown page was entirely claimed by relinking
			// around id 0 only on the very first page; on later pages
			// this cannot happen, but guard anyway.
			t.FullGC()
			if t.freeHead == 0 {
				t.growPages()
			}
		}
	}

	id := t.freeHead
	s := t.slotFor(id)
	t.freeHead = s.link
	t.installSlot(s, instance, opts)

	if id > t.maxUsed {
		t.maxUsed = id
	}

	t.allocSinceGC++
	t.bytesSinceGC += approxInstanceBytes
	return id
}

// AllocateWithID claims a specific id, as used by image/save load. It fails
// (spec: "a fatal image/save-format error") if the slot is not free.
func (t *Table) AllocateWithID(id value.ObjID, instance Instance, opts AllocOpts) error {
	if !id.Valid() {
		return dataErrorf("allocate_with_id", "id 0 is reserved invalid")
	}
	pageIdx, _ := t.split(id)
	for uint32(len(t.pages)) <= pageIdx {
		t.growPages()
	}
	s := t.slotFor(id)
	if s.flags&FlagFree == 0 {
		return dataErrorf("allocate_with_id", "slot %d is not free", id)
	}
	// Splice s out of the free list.
	t.spliceFreeList(id)
	t.installSlot(s, instance, opts)

	if id > t.maxUsed {
		t.maxUsed = id
	}
	return nil
}

func (t *Table) spliceFreeList(id value.ObjID) {
	if t.freeHead == id {
		t.freeHead = t.slotFor(id).link
		return
	}
	prev := t.slotFor(t.freeHead)
	for prev != nil {
		if prev.link == id {
			prev.link = t.slotFor(id).link
			return
		}
		prev = t.slotFor(prev.link)
	}
	dbg.Assert(false, "id %d claimed by allocate_with_id was not on the free list", id)
}

func (t *Table) installSlot(s *slot, instance Instance, opts AllocOpts) {
	s.instance = instance
	s.flags = 0
	if opts.InRootSet {
		s.flags |= FlagInRootSet
	}
	if opts.CanHaveRefs {
		s.flags |= FlagCanHaveRefs
	}
	if opts.CanHaveWeakRefs {
		s.flags |= FlagCanHaveWeakRefs
	}
	if opts.Transient {
		s.flags |= FlagTransient
	}
	if opts.InRootSet {
		s.reach = Reachable
	} else {
		s.reach = Unreachable
	}
	s.finalize = Unfinalizable
	s.link = 0
}

// Get returns the instance stored at id, and whether id refers to a live
// (non-free) slot.
func (t *Table) Get(id value.ObjID) (Instance, bool) {
	s := t.slotFor(id)
	if s == nil || s.flags&FlagFree != 0 {
		return nil, false
	}
	return s.instance, true
}

// IsValid reports whether id refers to a live slot.
func (t *Table) IsValid(id value.ObjID) bool {
	_, ok := t.Get(id)
	return ok
}

// MaxUsedObjID returns the highest id ever handed out by Allocate or
// AllocateWithID.
func (t *Table) MaxUsedObjID() value.ObjID { return t.maxUsed }

// SetGCHints updates the CanHaveRefs/CanHaveWeakRefs bits for id.
func (t *Table) SetGCHints(id value.ObjID, canHaveRefs, canHaveWeakRefs bool) {
	s := t.slotFor(id)
	if s == nil || s.flags&FlagFree != 0 {
		return
	}
	s.flags &^= FlagCanHaveRefs | FlagCanHaveWeakRefs
	if canHaveRefs {
		s.flags |= FlagCanHaveRefs
	}
	if canHaveWeakRefs {
		s.flags |= FlagCanHaveWeakRefs
	}
}

// Flags returns the current flag bits for id.
func (t *Table) Flags(id value.ObjID) Flags {
	s := t.slotFor(id)
	if s == nil {
		return 0
	}
	return s.flags
}

// Reachability returns id's current reachability state.
func (t *Table) Reachability(id value.ObjID) Reachability {
	s := t.slotFor(id)
	if s == nil {
		return Unreachable
	}
	return s.reach
}

// FinalizeState returns id's current finalization state.
func (t *Table) FinalizeState(id value.ObjID) FinalizeState {
	s := t.slotFor(id)
	if s == nil {
		return Unfinalizable
	}
	return s.finalize
}

// Generation returns id's current slot generation, for WeakRef validation.
func (t *Table) Generation(id value.ObjID) uint32 {
	s := t.slotFor(id)
	if s == nil {
		return 0
	}
	return s.generation
}

// Deref resolves a weak reference, returning false if the target slot has
// been freed (and possibly reused) since the reference was taken.
func (t *Table) Deref(w value.WeakRef) (Instance, bool) {
	s := t.slotFor(w.ID)
	if s == nil || s.flags&FlagFree != 0 || s.generation != w.Generation {
		return nil, false
	}
	return s.instance, true
}

// WeakRefTo constructs a live weak reference to id.
func (t *Table) WeakRefTo(id value.ObjID) value.WeakRef {
	return value.WeakRef{ID: id, Generation: t.Generation(id)}
}

// NotifyNewSavepoint marks every currently-live, non-transient slot
// in_undo, per spec §4.1: objects created after this point must not have
// undo generated against them until the *next* savepoint.
func (t *Table) NotifyNewSavepoint() {
	t.forEachLive(func(id value.ObjID, s *slot) {
		if s.flags&FlagTransient == 0 {
			s.flags |= FlagInUndo
		}
	})
}

func (t *Table) forEachLive(fn func(value.ObjID, *slot)) {
	for pageIdx := range t.pages {
		page := t.pages[pageIdx]
		for slotIdx := range page {
			s := &page[slotIdx]
			if s.flags&FlagFree != 0 {
				continue
			}
			fn(t.idOf(uint32(pageIdx), uint32(slotIdx)), s)
		}
	}
}

// ForEachLive calls fn for every live id in the table, in id order. fn must
// not allocate or free slots.
func (t *Table) ForEachLive(fn func(id value.ObjID)) {
	t.forEachLive(func(id value.ObjID, _ *slot) { fn(id) })
}

// Stats summarizes table occupancy, for diagnostics.
type Stats struct {
	Pages, Capacity, Live, Free                     int
	Reachable, FinalizerReachable, Unreachable       int
	Finalizable, Finalized                           int
}

// Stats computes a snapshot of table occupancy.
func (t *Table) Stats() Stats {
	var s Stats
	s.Pages = len(t.pages)
	s.Capacity = len(t.pages) * int(t.pageSize)
	for pageIdx := range t.pages {
		for slotIdx := range t.pages[pageIdx] {
			sl := &t.pages[pageIdx][slotIdx]
			if sl.flags&FlagFree != 0 {
				s.Free++
				continue
			}
			s.Live++
			switch sl.reach {
			case Reachable:
				s.Reachable++
			case FinalizerReachable:
				s.FinalizerReachable++
			case Unreachable:
				s.Unreachable++
			}
			switch sl.finalize {
			case Finalizable:
				s.Finalizable++
			case Finalized:
				s.Finalized++
			}
		}
	}
	return s
}
