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

import "github.com/tads3/govm/internal/value"

// RequestPostLoadInit records that id needs one-time initialization after
// an entire image or save load completes (spec §4.1: objects referencing
// each other by id can't safely resolve those ids mid-load). Duplicate
// requests for the same id are idempotent.
func (t *Table) RequestPostLoadInit(id value.ObjID) {
	s := t.slotFor(id)
	if s == nil || s.flags&FlagFree != 0 {
		return
	}
	if s.flags&FlagRequestedPostLoadInit != 0 {
		return
	}
	s.flags |= FlagRequestedPostLoadInit
	t.postLoadRequested = append(t.postLoadRequested, id)
}

// RunPostLoadInit runs PostLoadInit on every id that requested it, once
// the whole load is complete. An instance's PostLoadInit may itself demand
// (via the ensure callback) that another requested id's init run first;
// ensure detects a cyclic demand within the same pass and reports it as a
// data error rather than recursing forever.
func (t *Table) RunPostLoadInit() error {
	if t.postLoadDone == nil {
		t.postLoadDone = make(map[value.ObjID]bool)
	}
	if t.postLoadRunning == nil {
		t.postLoadRunning = make(map[value.ObjID]bool)
	}

	var ensure func(value.ObjID) error
	ensure = func(id value.ObjID) error {
		if t.postLoadDone[id] {
			return nil
		}
		if t.postLoadRunning[id] {
			return dataErrorf("ensure_post_load_init", "cyclic post-load-init request involving id %d", id)
		}
		s := t.slotFor(id)
		if s == nil || s.flags&FlagFree != 0 || s.flags&FlagRequestedPostLoadInit == 0 {
			return nil
		}
		initer, ok := s.instance.(PostLoadIniter)
		if !ok {
			t.postLoadDone[id] = true
			return nil
		}
		t.postLoadRunning[id] = true
		err := initer.PostLoadInit(ensure)
		delete(t.postLoadRunning, id)
		if err != nil {
			return err
		}
		t.postLoadDone[id] = true
		return nil
	}

	requested := t.postLoadRequested
	t.postLoadRequested = nil
	for _, id := range requested {
		if err := ensure(id); err != nil {
			return err
		}
	}
	t.postLoadDone = nil
	t.postLoadRunning = nil
	return nil
}
