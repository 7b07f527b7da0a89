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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tads3/govm/internal/value"
)

// plainObj has no outgoing references and no finalizer.
type plainObj struct{ name string }

// refObj holds outgoing references to other objects, traced via MarkRefs.
type refObj struct {
	name string
	refs []value.ObjID
}

func (o *refObj) MarkRefs(mark func(value.ObjID)) {
	for _, r := range o.refs {
		mark(r)
	}
}

// finalizingObj records whether its finalizer ran.
type finalizingObj struct {
	name string
	ran  *bool
}

func (o *finalizingObj) HasFinalizer() bool { return true }
func (o *finalizingObj) InvokeFinalizer()   { *o.ran = true }

func newTestTable() *Table {
	return New(Thresholds{PageSize: 8, AllocCount: 1 << 30, ByteCount: 1 << 30})
}

func TestAllocateAssignsDistinctNonZeroIDs(t *testing.T) {
	tab := newTestTable()
	seen := map[value.ObjID]bool{}
	for i := 0; i < 20; i++ {
		id := tab.Allocate(&plainObj{name: "x"}, AllocOpts{})
		require.True(t, id.Valid())
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestAllocateWithIDRejectsOccupiedSlot(t *testing.T) {
	tab := newTestTable()
	id := tab.Allocate(&plainObj{}, AllocOpts{})
	err := tab.AllocateWithID(id, &plainObj{}, AllocOpts{})
	assert.Error(t, err)
}

func TestFullGCReclaimsUnreachablePlainObject(t *testing.T) {
	tab := newTestTable()
	root := tab.Allocate(&refObj{name: "root"}, AllocOpts{InRootSet: true, CanHaveRefs: true})
	garbage := tab.Allocate(&plainObj{name: "garbage"}, AllocOpts{})
	_ = garbage

	tab.FullGC()

	_, liveRoot := tab.Get(root)
	assert.True(t, liveRoot)
	_, liveGarbage := tab.Get(garbage)
	assert.False(t, liveGarbage, "unreachable object with no finalizer must be reclaimed in one pass")
}

func TestFullGCKeepsReachableChain(t *testing.T) {
	tab := newTestTable()
	leaf := tab.Allocate(&plainObj{name: "leaf"}, AllocOpts{})
	mid := tab.Allocate(&refObj{name: "mid", refs: []value.ObjID{leaf}}, AllocOpts{CanHaveRefs: true})
	root := tab.Allocate(&refObj{name: "root", refs: []value.ObjID{mid}}, AllocOpts{InRootSet: true, CanHaveRefs: true})

	tab.FullGC()

	for _, id := range []value.ObjID{leaf, mid, root} {
		_, live := tab.Get(id)
		assert.True(t, live, "id %d reachable from root should survive", id)
	}
}

// TestFinalizerRequiresTwoPasses exercises spec scenario 2: an unreachable
// object with a finalizer is not deleted by the pass that first discovers
// it unreachable; only after RunFinalizers runs does a second pass reclaim
// it.
func TestFinalizerRequiresTwoPasses(t *testing.T) {
	tab := newTestTable()
	ran := false
	id := tab.Allocate(&finalizingObj{name: "doomed", ran: &ran}, AllocOpts{})

	tab.FullGC()
	_, stillLive := tab.Get(id)
	assert.True(t, stillLive, "finalizable object survives its first unreachable pass")
	assert.Equal(t, Finalizable, tab.FinalizeState(id))
	assert.False(t, ran)

	tab.RunFinalizers()
	assert.True(t, ran)
	assert.Equal(t, Finalized, tab.FinalizeState(id))

	tab.FullGC()
	_, liveAfterSecondPass := tab.Get(id)
	assert.False(t, liveAfterSecondPass, "finalized+unreachable object is reclaimed on the next pass")
}

func TestWeakRefInvalidatedAfterReclaim(t *testing.T) {
	tab := newTestTable()
	id := tab.Allocate(&plainObj{name: "ephemeral"}, AllocOpts{CanHaveWeakRefs: true})
	ref := tab.WeakRefTo(id)

	_, ok := tab.Deref(ref)
	assert.True(t, ok)

	tab.FullGC() // id has no root and no finalizer, so it is reclaimed immediately

	_, ok = tab.Deref(ref)
	assert.False(t, ok, "weak ref must not resolve once its generation has moved on")
}

func TestIncrementalPassMatchesFullPass(t *testing.T) {
	tab := newTestTable()
	leaf := tab.Allocate(&plainObj{name: "leaf"}, AllocOpts{})
	root := tab.Allocate(&refObj{name: "root", refs: []value.ObjID{leaf}}, AllocOpts{InRootSet: true, CanHaveRefs: true})
	garbage := tab.Allocate(&plainObj{name: "garbage"}, AllocOpts{})

	tab.GCPassInit()
	for tab.GCPassContinue(1) {
	}
	tab.GCPassFinish()

	_, liveLeaf := tab.Get(leaf)
	_, liveRoot := tab.Get(root)
	_, liveGarbage := tab.Get(garbage)
	assert.True(t, liveLeaf)
	assert.True(t, liveRoot)
	assert.False(t, liveGarbage)
}

func TestNotifyNewSavepointFlagsLiveSlots(t *testing.T) {
	tab := newTestTable()
	id := tab.Allocate(&plainObj{}, AllocOpts{})
	tab.NotifyNewSavepoint()
	assert.NotZero(t, tab.Flags(id)&FlagInUndo)
}

func TestRunPostLoadInitDetectsCycle(t *testing.T) {
	tab := newTestTable()
	var a, b value.ObjID
	oa := &postLoadObj{}
	ob := &postLoadObj{}
	a = tab.Allocate(oa, AllocOpts{})
	b = tab.Allocate(ob, AllocOpts{})
	oa.other = b
	ob.other = a
	tab.RequestPostLoadInit(a)
	tab.RequestPostLoadInit(b)

	err := tab.RunPostLoadInit()
	assert.Error(t, err)
}

type postLoadObj struct {
	other value.ObjID
	done  bool
}

func (o *postLoadObj) PostLoadInit(ensure func(value.ObjID) error) error {
	if o.done {
		return nil
	}
	o.done = true
	return ensure(o.other)
}
