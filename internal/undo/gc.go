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

import "github.com/tads3/govm/internal/value"

// MarkRefs traces every object reference held by an old value recorded in
// the log, per spec §4.2: an undone value can itself be an Obj reference,
// and the object it refers to must stay alive until the undo that would
// restore it is either replayed or dropped. mark does not mark the Record's
// owning object (Key.Obj) itself — only the objects named by OldValue, if
// any — matching the spec's "does not mark the owner's slot" note.
func (l *Log) MarkRefs(mark func(value.ObjID)) {
	for i := 0; i < l.count; i++ {
		idx := (l.head - l.count + i + len(l.buf)) % len(l.buf)
		r := l.buf[idx]
		if isLink(r) {
			continue
		}
		if obj, ok := r.OldValue.AsObj(); ok {
			mark(obj)
		}
	}
}

// RemoveStaleWeakRefs replaces every Obj-valued old value whose target is
// no longer live with nil, per spec §4.2's gc_remove_stale_weak_refs. isLive reports
// whether an object id will survive the GC pass currently finishing.
func (l *Log) RemoveStaleWeakRefs(isLive func(value.ObjID) bool) {
	for i := 0; i < l.count; i++ {
		idx := (l.head - l.count + i + len(l.buf)) % len(l.buf)
		r := &l.buf[idx]
		if isLink(*r) {
			continue
		}
		if obj, ok := r.OldValue.AsObj(); ok && !isLive(obj) {
			r.OldValue = value.Nil
		}
	}
}
