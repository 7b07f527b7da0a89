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

// Package metaclass implements the registry that maps an image file's
// metaclass name+version strings to the Go type that knows how to create,
// restore, and dispatch methods on instances of it — the "polymorphism
// without inheritance" design note from spec §9, implemented as a
// trait-object table rather than a class hierarchy.
package metaclass

import (
	"github.com/tads3/govm/internal/objtab"
	"github.com/tads3/govm/internal/value"
	"github.com/tads3/govm/internal/xsync"
)

// Factory creates instances of one metaclass. A host registers one Factory
// per metaclass name+version pair found in image files it expects to load.
type Factory interface {
	// Name is the metaclass identifier stored in the image file (e.g.
	// "list/030000", matching the original format's name+version scheme).
	Name() string

	// CreateForImageLoad builds an instance from an image file's raw
	// per-object payload bytes.
	CreateForImageLoad(data []byte) (objtab.Instance, error)

	// CreateForRestore builds an instance from a saved-state file's raw
	// per-object payload bytes.
	CreateForRestore(data []byte) (objtab.Instance, error)

	// CreateFromStack builds a fresh, empty instance as requested by a
	// running program (the VM's "new" opcode), before any property values
	// are assigned to it.
	CreateFromStack() (objtab.Instance, error)

	// Methods returns the function-index -> native method dispatch table
	// for this metaclass, used to resolve a call through an object's
	// vtable slot to the Go function implementing it.
	Methods() map[uint16]Method
}

// Method is a native method a metaclass instance can be called with via
// its function-index dispatch table.
type Method func(self objtab.Instance, args []value.Value) (value.Value, error)

// Registry maps metaclass names to their Factory, safe for concurrent
// registration and lookup (a host may load metaclasses from several
// image-parsing goroutines, per spec §5/SPEC_FULL's parallel block
// decode).
type Registry struct {
	factories xsync.Map[string, Factory]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds f under its own Name(). Registering the same name twice
// replaces the previous Factory (a host re-registering a newer version of
// a metaclass it already knows).
func (r *Registry) Register(f Factory) {
	r.factories.Store(f.Name(), f)
}

// Lookup finds the Factory registered for name, if any.
func (r *Registry) Lookup(name string) (Factory, bool) {
	return r.factories.Load(name)
}

// DispatchMethod resolves funcIdx on the metaclass named by metaclassName
// and invokes it against self with args.
func (r *Registry) DispatchMethod(metaclassName string, funcIdx uint16, self objtab.Instance, args []value.Value) (value.Value, error) {
	f, ok := r.Lookup(metaclassName)
	if !ok {
		return value.Nil, unknownMetaclassErrorf(metaclassName)
	}
	method, ok := f.Methods()[funcIdx]
	if !ok {
		return value.Nil, unknownMethodErrorf(metaclassName, funcIdx)
	}
	return method(self, args)
}
