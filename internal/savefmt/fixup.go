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

package savefmt

import "github.com/tads3/govm/internal/value"

// Fixup is the old-id -> new-id table built while restore reallocates
// slots (spec §6: "resolves forward references via an object-id fixup
// table constructed during load"). Restore populates one entry per
// Record as it assigns the record's new slot, in whatever order the
// object table allocates in; that order need not match the order ids
// appeared in the save file, which is exactly why every reference must be
// resolved through this table rather than assumed stable.
type Fixup struct {
	oldToNew map[uint32]value.ObjID
}

// NewFixup creates an empty fixup table sized for n expected records.
func NewFixup(n int) *Fixup {
	return &Fixup{oldToNew: make(map[uint32]value.ObjID, n)}
}

// Set records that oldID was reallocated at newID.
func (f *Fixup) Set(oldID uint32, newID value.ObjID) {
	f.oldToNew[oldID] = newID
}

// Resolve looks up the new id for a reference recorded under oldID in the
// save file. It reports false for a forward reference to an id that was
// never a record in this save file — spec §7's "forward reference to a
// nonexistent id" data error.
func (f *Fixup) Resolve(oldID uint32) (value.ObjID, bool) {
	id, ok := f.oldToNew[oldID]
	return id, ok
}

// IDRewriter is implemented by restored instances that hold forward
// object-id references inside their own payload (as opposed to the
// generic RefMarker tracing objtab uses for GC). Restore calls RewriteIDs
// once every record has been reallocated and the fixup table is complete,
// matching spec §6's "for each fixed-up dataholder in memory it rewrites
// the id field".
type IDRewriter interface {
	RewriteIDs(fixup *Fixup) error
}
