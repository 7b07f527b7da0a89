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

package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tads3/govm/internal/value"
)

type fakeApplier struct {
	applied  map[Key]value.Value
	discarded map[Key]value.Value
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{applied: map[Key]value.Value{}, discarded: map[Key]value.Value{}}
}

func (a *fakeApplier) ApplyUndo(key Key, old value.Value)   { a.applied[key] = old }
func (a *fakeApplier) DiscardUndo(key Key, old value.Value) { a.discarded[key] = old }

func TestUndoToSavepointRestoresInLIFOOrder(t *testing.T) {
	l := New(64, 8)
	sp := l.CreateSavepoint()
	k := Key{Obj: 1, Sub: 10}
	l.AddRecord(Record{Key: k, OldValue: value.Int(1)})
	l.AddRecord(Record{Key: k, OldValue: value.Int(2)})

	app := newFakeApplier()
	err := l.UndoToSavepoint(sp, app)
	require.NoError(t, err)

	// Both records share key k; LIFO replay calls ApplyUndo(k, 2) first and
	// ApplyUndo(k, 1) last, so the fake applier's map ends up holding the
	// value from the last call.
	assert.Equal(t, value.Int(1), app.applied[k])
}

func TestUndoToSavepointUnknownIDFails(t *testing.T) {
	l := New(64, 8)
	err := l.UndoToSavepoint(SavepointID(999), newFakeApplier())
	assert.ErrorIs(t, err, ErrNoUndoStates)
}

func TestNestedSavepointsUndoInnerOnly(t *testing.T) {
	l := New(64, 8)
	outer := l.CreateSavepoint()
	l.AddRecord(Record{Key: Key{Obj: 1, Sub: 0}, OldValue: value.Int(100)})
	inner := l.CreateSavepoint()
	l.AddRecord(Record{Key: Key{Obj: 2, Sub: 0}, OldValue: value.Int(200)})

	app := newFakeApplier()
	require.NoError(t, l.UndoToSavepoint(inner, app))
	assert.Equal(t, value.Int(200), app.applied[Key{Obj: 2, Sub: 0}])
	assert.Equal(t, 1, l.SavepointCount(), "outer savepoint must still be open")

	app2 := newFakeApplier()
	require.NoError(t, l.UndoToSavepoint(outer, app2))
	assert.Equal(t, value.Int(100), app2.applied[Key{Obj: 1, Sub: 0}])
	assert.Equal(t, 0, l.SavepointCount())
}

func TestCreateSavepointDropsOldestBeyondCap(t *testing.T) {
	l := New(64, 2)
	first := l.CreateSavepoint()
	l.CreateSavepoint()
	l.CreateSavepoint() // should drop `first`

	err := l.UndoToSavepoint(first, newFakeApplier())
	assert.ErrorIs(t, err, ErrNoUndoStates)
	assert.Equal(t, 2, l.SavepointCount())
}

func TestAddRecordWithoutSavepointIsDiscarded(t *testing.T) {
	l := New(64, 2)
	l.AddRecord(Record{Key: Key{Obj: 1}, OldValue: value.Int(5)})
	assert.Equal(t, 0, l.count)
}

func TestDropAllClearsEverything(t *testing.T) {
	l := New(64, 2)
	l.CreateSavepoint()
	l.AddRecord(Record{Key: Key{Obj: 1}, OldValue: value.Int(1)})
	l.DropAll()
	assert.Equal(t, 0, l.SavepointCount())
	assert.Equal(t, 0, l.count)
}

func TestMarkRefsTracesObjValuedRecords(t *testing.T) {
	l := New(64, 2)
	l.CreateSavepoint()
	l.AddRecord(Record{Key: Key{Obj: 1}, OldValue: value.Obj(42)})
	l.AddRecord(Record{Key: Key{Obj: 1}, OldValue: value.Int(7)})

	var marked []value.ObjID
	l.MarkRefs(func(id value.ObjID) { marked = append(marked, id) })
	assert.Equal(t, []value.ObjID{42}, marked)
}

func TestRemoveStaleWeakRefsNilsOutDeadTargets(t *testing.T) {
	l := New(64, 2)
	l.CreateSavepoint()
	l.AddRecord(Record{Key: Key{Obj: 1}, OldValue: value.Obj(42)})

	l.RemoveStaleWeakRefs(func(value.ObjID) bool { return false })

	app := newFakeApplier()
	require.NoError(t, l.UndoToSavepoint(l.savepoints[0], app))
	assert.True(t, app.applied[Key{Obj: 1}].IsNil())
}
