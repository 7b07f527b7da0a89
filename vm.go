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

package govm

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/tads3/govm/internal/dbg"
	"github.com/tads3/govm/internal/dict"
	"github.com/tads3/govm/internal/grammar"
	"github.com/tads3/govm/internal/imgfmt"
	"github.com/tads3/govm/internal/metaclass"
	"github.com/tads3/govm/internal/objtab"
	"github.com/tads3/govm/internal/savefmt"
	"github.com/tads3/govm/internal/strcmp"
	"github.com/tads3/govm/internal/undo"
	"github.com/tads3/govm/internal/value"
)

// Vm is one instance of the runtime: an object table, an undo log, a
// metaclass registry, and the grammar/dictionary/comparator triple, tied
// together by explicit fields rather than package-level globals (the
// design note favoring an explicit-context Vm over a singleton runtime, so
// a host process can run several VMs side by side).
type Vm struct {
	ID uuid.UUID

	config      Config
	Objects     *objtab.Table
	Undo        *undo.Log
	Metaclasses *metaclass.Registry
	Comparator  *strcmp.Comparator
	Dictionary  *dict.Dictionary
	Grammar     *grammar.Grammar

	extraRoots func(mark func(ObjID))
}

// UndoApplier is implemented by metaclass instances whose mutable state is
// recorded in the undo log: Vm.ApplyUndo and Vm.DiscardUndo dispatch to it
// by Sub, the same trait-object pattern objtab uses for RefMarker and
// Finalizable.
type UndoApplier interface {
	ApplyUndo(sub uint32, old Value)
	DiscardUndo(sub uint32, old Value)
}

// Saveable is implemented by metaclass instances that participate in
// saved-state serialization: SaveBody produces the same kind of
// metaclass-specific payload bytes a Factory's CreateForRestore consumes.
type Saveable interface {
	SaveBody() ([]byte, error)
}

// NewVm creates a Vm from cfg, wiring the object table's GC hooks to the
// undo log's weak-reference cleanup (spec §4.1 step 6) without either
// internal package importing the other.
func NewVm(cfg Config, metaclasses *metaclass.Registry) *Vm {
	vm := &Vm{
		ID:          uuid.New(),
		config:      cfg,
		Objects:     objtab.New(objtab.Thresholds{PageSize: cfg.ObjectTablePageSize, AllocCount: cfg.GCAllocThreshold, ByteCount: cfg.GCByteThreshold}),
		Undo:        undo.New(cfg.UndoLogCapacity, cfg.MaxSavepoints),
		Metaclasses: metaclasses,
		Comparator:  strcmp.New(),
	}
	vm.Dictionary = dict.New(vm.Comparator)
	vm.Grammar = grammar.New(vm.Comparator, vm.Dictionary)

	vm.Objects.SetRootEnumerator(func(mark func(value.ObjID)) {
		if vm.extraRoots != nil {
			vm.extraRoots(mark)
		}
	})
	vm.Objects.SetBeforeDelete(func() {
		vm.Undo.RemoveStaleWeakRefs(vm.Objects.IsLiveForWeakRef)
	})
	return vm
}

// SetRootEnumerator installs the callback a bytecode dispatcher uses to
// enumerate ids reachable from the stack, imports, and globals — state
// that lives outside both the object table and the undo log.
func (vm *Vm) SetRootEnumerator(fn func(mark func(ObjID))) {
	vm.extraRoots = fn
}

// ApplyUndo implements undo.Applier by dispatching to the target object's
// own UndoApplier, if it has one. An id with no live instance, or whose
// instance does not implement UndoApplier, is treated as a no-op: the
// object has already been rolled out of existence by an earlier record in
// the same undo pass.
func (vm *Vm) ApplyUndo(key undo.Key, old value.Value) {
	inst, ok := vm.Objects.Get(key.Obj)
	if !ok {
		return
	}
	if a, ok := inst.(UndoApplier); ok {
		a.ApplyUndo(key.Sub, old)
	}
}

// DiscardUndo implements undo.Applier's other half: dropping a record
// without replaying it, used when the owning object is itself being
// unwound.
func (vm *Vm) DiscardUndo(key undo.Key, old value.Value) {
	inst, ok := vm.Objects.Get(key.Obj)
	if !ok {
		return
	}
	if a, ok := inst.(UndoApplier); ok {
		a.DiscardUndo(key.Sub, old)
	}
}

// CreateSavepoint opens a new undo savepoint and flags every currently
// live, non-transient object in_undo, per spec §4.1/§4.2.
func (vm *Vm) CreateSavepoint() undo.SavepointID {
	id := vm.Undo.CreateSavepoint()
	vm.Objects.NotifyNewSavepoint()
	return id
}

// UndoToSavepoint rolls every record back to id, replaying each via vm's
// own UndoApplier dispatch.
func (vm *Vm) UndoToSavepoint(id undo.SavepointID) error {
	if err := vm.Undo.UndoToSavepoint(id, vm); err != nil {
		return fmt.Errorf("govm: undo_to_savepoint: %w: %w", ErrNoUndoStates, err)
	}
	return nil
}

// FullGC runs a complete mark/sweep pass, then runs any finalizers that
// pass discovered (spec §4.1's two-call "discover, then finalize"
// protocol: finalizers never run while a pass's own bookkeeping is still
// in flight).
func (vm *Vm) FullGC() {
	vm.Objects.FullGC()
	vm.Objects.RunFinalizers()
}

// Diagnostics summarizes rollback cost and GC pressure for a host to
// surface alongside objtab.Table.Stats, without exposing either
// subsystem's internals directly.
type Diagnostics struct {
	MeanReclaimedPerGCPass float64
	MedianUndoDepth        float64
}

// Diagnostics reports the current values of vm's running instrumentation
// counters.
func (vm *Vm) Diagnostics() Diagnostics {
	return Diagnostics{
		MeanReclaimedPerGCPass: vm.Objects.MeanReclaimedPerPass(),
		MedianUndoDepth:        vm.Undo.MedianUndoDepth(),
	}
}

// LoadImage installs every object, grammar production, and dictionary
// entry decoded from an image file (internal/imgfmt.Load) into vm. Image
// objects keep the ids they were assigned in the image, since other image
// objects may reference them by id directly (unlike save-file restore,
// which must renumber through a fixup table).
func (vm *Vm) LoadImage(ctx context.Context, r io.Reader) error {
	img, err := imgfmt.Load(ctx, r)
	if err != nil {
		return configErrorf("load_image", "%v", err)
	}

	for _, rec := range img.Objects {
		factory, ok := vm.Metaclasses.Lookup(rec.MetaclassName)
		if !ok {
			return configErrorf("load_image", "unknown metaclass %q for object %d", rec.MetaclassName, rec.ID)
		}
		inst, err := factory.CreateForImageLoad(rec.Data)
		if err != nil {
			return dataErrorf("load_image", "object %d (%s): %v", rec.ID, rec.MetaclassName, err)
		}
		if err := vm.Objects.AllocateWithID(value.ObjID(rec.ID), inst, objtab.AllocOpts{InRootSet: true, CanHaveRefs: true}); err != nil {
			return dataErrorf("load_image", "object %d: %v", rec.ID, err)
		}
	}

	// The comparator must be installed before the dictionary and grammar
	// are populated: both hash words through vm.Comparator as they are
	// added, so replacing it afterward would leave already-added entries
	// hashed under the wrong configuration.
	if img.Comparator != nil {
		vm.Comparator = img.Comparator
		vm.Dictionary = dict.New(vm.Comparator)
		vm.Grammar = grammar.New(vm.Comparator, vm.Dictionary)
	}
	for _, p := range img.Productions {
		vm.Grammar.AddProduction(p)
	}
	for _, d := range img.Dictionary {
		vm.Dictionary.Add(d.Word, d.PartOfSpeech)
	}

	if err := vm.Objects.RunPostLoadInit(); err != nil {
		return dataErrorf("load_image", "post-load init: %v", err)
	}
	dbg.Log(nil, "vm.LoadImage", "loaded %d objects, %d productions, %d dictionary entries",
		len(img.Objects), len(img.Productions), len(img.Dictionary))
	return nil
}

// SaveState writes every non-root, non-transient live object to w in the
// saved-state format (spec §6). Root-set objects (the ones an image
// already established) are assumed reconstructible by reloading the same
// image before restoring, exactly as the original format's restore
// sequence expects.
func (vm *Vm) SaveState(w io.Writer) error {
	var records []savefmt.Record
	var saveErr error
	vm.Objects.ForEachLive(func(id ObjID) {
		if saveErr != nil {
			return
		}
		if vm.Objects.Flags(id)&objtab.FlagInRootSet != 0 {
			return
		}
		if vm.Objects.Flags(id)&objtab.FlagTransient != 0 {
			return
		}
		inst, _ := vm.Objects.Get(id)
		sv, ok := inst.(Saveable)
		if !ok {
			return
		}
		body, err := sv.SaveBody()
		if err != nil {
			saveErr = typeErrorf("save_state", "object %d: %v", uint32(id), err)
			return
		}
		name := ""
		if named, ok := inst.(interface{ MetaclassName() string }); ok {
			name = named.MetaclassName()
		}
		records = append(records, savefmt.Record{OldID: uint32(id), MetaclassName: name, Body: body})
	})
	if saveErr != nil {
		return saveErr
	}

	header := savefmt.Header{Version: 1, ProducedBy: vm.ID}
	if err := savefmt.Write(w, header, records); err != nil {
		return resourceErrorf("save_state", "%v", err)
	}
	return nil
}

// RestoreState reads a saved-state file and reinstalls every record at a
// freshly allocated id, resolving forward references through a fixup
// table built as slots are reallocated (spec §6). The caller is expected
// to have already reloaded the originating image into vm, establishing
// the root-set objects save files never re-serialize.
func (vm *Vm) RestoreState(buf []byte) error {
	_, records, err := savefmt.Read(buf)
	if err != nil {
		return configErrorf("restore_state", "%v", err)
	}

	fixup := savefmt.NewFixup(len(records))
	instances := make([]objtab.Instance, len(records))
	for i, rec := range records {
		factory, ok := vm.Metaclasses.Lookup(rec.MetaclassName)
		if !ok {
			return configErrorf("restore_state", "unknown metaclass %q for object %d", rec.MetaclassName, rec.OldID)
		}
		inst, err := factory.CreateForRestore(rec.Body)
		if err != nil {
			return dataErrorf("restore_state", "object %d (%s): %v", rec.OldID, rec.MetaclassName, err)
		}
		newID := vm.Objects.Allocate(inst, objtab.AllocOpts{CanHaveRefs: true})
		fixup.Set(rec.OldID, newID)
		instances[i] = inst
	}

	for _, inst := range instances {
		rw, ok := inst.(savefmt.IDRewriter)
		if !ok {
			continue
		}
		if err := rw.RewriteIDs(fixup); err != nil {
			return dataErrorf("restore_state", "rewrite ids: %v", err)
		}
	}
	return nil
}
