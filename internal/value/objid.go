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

package value

// ObjID is a stable 32-bit handle to an object table slot. Zero means
// "invalid/null object"; see spec §3 "Object id".
type ObjID uint32

// InvalidObjID is the reserved null object id.
const InvalidObjID ObjID = 0

// Valid reports whether id is a non-zero id. It does not by itself
// guarantee the id refers to a live slot: use a table lookup for that
// (spec §4.1 Failure semantics: "Accessing a freed id via get is undefined;
// callers are expected to check is_obj_id_valid... first").
func (id ObjID) Valid() bool { return id != InvalidObjID }

// WeakRef is a generation-qualified weak reference, per the design note in
// spec §9: "Model weak references as (object_id, generation) pairs; the
// generation bumps when the slot is freed."
type WeakRef struct {
	ID         ObjID
	Generation uint32
}
