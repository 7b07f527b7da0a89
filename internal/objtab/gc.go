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

package objtab

import (
	"github.com/tads3/govm/internal/dbg"
	"github.com/tads3/govm/internal/value"
)

// passState holds the work queue for an in-progress GC pass. Only one pass
// can be active at a time; Allocate/Free refuse to run while pass != nil.
type passState struct {
	queue []value.ObjID
	head  int
}

func (p *passState) push(id value.ObjID) {
	p.queue = append(p.queue, id)
}

func (p *passState) pop() (value.ObjID, bool) {
	if p.head >= len(p.queue) {
		return 0, false
	}
	id := p.queue[p.head]
	p.head++
	return id, true
}

func (p *passState) drained() bool { return p.head >= len(p.queue) }

// enqueue raises id's reachability to at least state and, if that actually
// raised it, pushes id onto the work queue. Reachability only ever
// increases during a pass (Unreachable < FinalizerReachable < Reachable),
// per spec §4.1.
func (t *Table) enqueue(id value.ObjID, state Reachability) {
	s := t.slotFor(id)
	if s == nil || s.flags&FlagFree != 0 {
		return
	}
	if state <= s.reach {
		return
	}
	s.reach = state
	t.pass.push(id)
}

// traceRefs calls instance.MarkRefs for every live slot flagged
// CanHaveRefs, enqueuing each referenced id at targetState.
func (t *Table) traceRefs(id value.ObjID, targetState Reachability) {
	s := t.slotFor(id)
	if s == nil || s.flags&FlagCanHaveRefs == 0 {
		return
	}
	rm, ok := s.instance.(RefMarker)
	if !ok {
		return
	}
	rm.MarkRefs(func(ref value.ObjID) { t.enqueue(ref, targetState) })
}

// drain drains the work queue, tracing each popped id's references at
// the slot's current reachability, not the state it was enqueued with.
// Since enqueue never lowers reachability, a slot enqueued at
// FinalizerReachable that was later raised to Reachable by a different path
// traces its references at Reachable.
func (t *Table) drain(floor Reachability) {
	for {
		id, ok := t.pass.pop()
		if !ok {
			return
		}
		s := t.slotFor(id)
		if s == nil {
			continue
		}
		// Trace refs at this slot's *actual* current reachability, which
		// is always >= floor since enqueue only raises.
		t.traceRefs(id, s.reach)
	}
}

// GCPassInit begins an incremental GC pass: every live slot's reachability
// is reset to Unreachable, then the root set (in_root_set slots plus
// externally-enumerated bytecode roots) is (re)marked Reachable and queued.
func (t *Table) GCPassInit() {
	dbg.Assert(t.pass == nil, "gc_pass_init called while a pass is already active")
	t.pass = &passState{}

	t.forEachLive(func(id value.ObjID, s *slot) {
		s.reach = Unreachable
		if s.flags&FlagInRootSet != 0 {
			s.reach = Reachable
			t.pass.push(id)
		}
	})
	if t.roots != nil {
		t.roots(func(id value.ObjID) { t.enqueue(id, Reachable) })
	}
}

// GCPassContinue drains up to budget entries from the work queue, tracing
// their outgoing references. It reports whether more work remains.
func (t *Table) GCPassContinue(budget int) (more bool) {
	dbg.Assert(t.pass != nil, "gc_pass_continue called with no active pass")
	for i := 0; i < budget; i++ {
		id, ok := t.pass.pop()
		if !ok {
			return false
		}
		s := t.slotFor(id)
		if s == nil {
			continue
		}
		t.traceRefs(id, s.reach)
	}
	return !t.pass.drained()
}

// GCPassFinish completes an in-progress pass: drains any remaining work,
// promotes unreachable-but-finalizable objects through the
// finalizer-reachable wave, runs weak-reference cleanup, and deletes every
// now-deletable slot. It returns the set of ids newly made Finalizable,
// which the caller should hand to RunFinalizers once it is safe to run
// arbitrary finalizer code (i.e. outside the pass).
func (t *Table) GCPassFinish() []value.ObjID {
	dbg.Assert(t.pass != nil, "gc_pass_finish called with no active pass")
	t.drain(Reachable)

	// Step 4: objects that are still unreachable but carry a non-trivial
	// finalizer are promoted to finalizer-reachable and their referents
	// traced at that same floor, so that an object kept alive only by a
	// finalizer doesn't have its children swept out from under it before
	// the finalizer runs.
	var newlyFinalizable []value.ObjID
	t.forEachLive(func(id value.ObjID, s *slot) {
		if s.reach != Unreachable || s.finalize != Unfinalizable {
			return
		}
		fin, ok := s.instance.(Finalizable)
		if !ok || !fin.HasFinalizer() {
			return
		}
		s.finalize = Finalizable
		newlyFinalizable = append(newlyFinalizable, id)
		t.enqueue(id, FinalizerReachable)
	})
	t.drain(FinalizerReachable)
	t.pendingFinalize = append(t.pendingFinalize, newlyFinalizable...)

	// Step 5: give every live, weak-ref-bearing instance a chance to drop
	// stale weak references before anything is deleted.
	t.forEachLive(func(id value.ObjID, s *slot) {
		if s.flags&FlagCanHaveWeakRefs == 0 {
			return
		}
		wc, ok := s.instance.(WeakRefCleaner)
		if !ok {
			return
		}
		wc.RemoveStaleWeakRefs(t.isLiveForWeakRef)
	})

	// Step 6: give the undo log (which this package cannot import without
	// creating a cycle) the same chance, via the hook the embedding Vm
	// installs with SetBeforeDelete.
	if t.beforeDelete != nil {
		t.beforeDelete()
	}

	// Step 7: reclaim every deletable slot.
	var reclaimed []value.ObjID
	t.forEachLive(func(id value.ObjID, s *slot) {
		if t.isDeletable(s) {
			reclaimed = append(reclaimed, id)
		}
	})
	for _, id := range reclaimed {
		t.reclaim(id)
	}
	t.reclaimedPerPass.Record(float64(len(reclaimed)))

	t.pass = nil
	t.allocSinceGC = 0
	t.bytesSinceGC = 0
	return newlyFinalizable
}

// IsLiveForWeakRef reports whether id is still live for the purposes of
// weak-reference cleanup run from a Table.SetBeforeDelete hook: a slot
// that will be deleted at the end of the pass currently finishing is
// treated as already gone, even though deletion hasn't physically happened
// yet. This is the same predicate GCPassFinish uses for its own
// WeakRefCleaner step, exported so the embedding Vm's undo-log cleanup
// (wired via SetBeforeDelete) sees identical semantics.
func (t *Table) IsLiveForWeakRef(id value.ObjID) bool {
	return t.isLiveForWeakRef(id)
}

// isLiveForWeakRef is the "is this id still live" predicate handed to
// WeakRefCleaner.RemoveStaleWeakRefs and to the undo log's equivalent
// cleanup: a slot that will be deleted at the end of this pass should be
// treated as already gone, even though deletion hasn't physically happened
// yet.
func (t *Table) isLiveForWeakRef(id value.ObjID) bool {
	s := t.slotFor(id)
	if s == nil || s.flags&FlagFree != 0 {
		return false
	}
	return !t.isDeletable(s)
}

// isDeletable reports whether s may be reclaimed at the end of the current
// pass: it must be unreachable, and either it has no finalizer at all (in
// which case finalize state never leaves Unfinalizable and deletion is
// immediate) or its finalizer has already run (Finalized).
func (t *Table) isDeletable(s *slot) bool {
	if s.flags&FlagFree != 0 || s.reach != Unreachable {
		return false
	}
	if s.finalize == Finalized {
		return true
	}
	if s.finalize == Finalizable {
		return false
	}
	if fin, ok := s.instance.(Finalizable); ok && fin.HasFinalizer() {
		return false
	}
	return true
}

func (t *Table) reclaim(id value.ObjID) {
	s := t.slotFor(id)
	s.instance = nil
	s.flags = FlagFree
	s.reach = Unreachable
	s.finalize = Unfinalizable
	s.generation++
	s.link = t.freeHead
	t.freeHead = id
}

// FullGC runs steps 1 through 7 of the mark/sweep algorithm to completion
// in one call: init, drain to completion, finish.
func (t *Table) FullGC() []value.ObjID {
	t.GCPassInit()
	return t.GCPassFinish()
}

// RunFinalizers invokes InvokeFinalizer on every slot currently in the
// Finalizable state, in the order they were discovered, and marks each
// Finalized afterward so a subsequent GC pass can reclaim it. Per spec
// §4.1, a panicking finalizer is caught and discarded rather than allowed
// to propagate.
func (t *Table) RunFinalizers() {
	dbg.Assert(t.pass == nil, "run_finalizers called during an active GC pass")
	ids := t.pendingFinalize
	t.pendingFinalize = nil
	for _, id := range ids {
		s := t.slotFor(id)
		if s == nil || s.flags&FlagFree != 0 || s.finalize != Finalizable {
			continue
		}
		t.invokeFinalizerSafely(s)
		s.finalize = Finalized
	}
}

func (t *Table) invokeFinalizerSafely(s *slot) {
	defer func() { _ = recover() }()
	if fin, ok := s.instance.(Finalizable); ok {
		fin.InvokeFinalizer()
	}
}
