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

// Package undo implements the bounded circular undo log described in
// spec §4.2: nested savepoints over a fixed-capacity record buffer, with
// selective rollback and the oldest savepoint silently dropped under
// memory pressure rather than failing the operation that needed a record.
package undo

import (
	"github.com/tads3/govm/internal/dbg"
	"github.com/tads3/govm/internal/stats"
	"github.com/tads3/govm/internal/value"
)

// SavepointID numbers savepoints in creation order and wraps at 16 bits,
// per spec §4.2's design note on savepoint numbering.
type SavepointID uint16

// Key identifies what a Record undoes: an object id plus whatever
// sub-identifier the owning metaclass uses to distinguish its own mutable
// slots (a property id, a list index, and so on). The undo log treats Key
// as opaque beyond comparing it for equality.
type Key struct {
	Obj  value.ObjID
	Sub  uint32
}

// Record captures the value a (Obj, Sub) pair held immediately before a
// mutation, so that UndoToSavepoint can restore it.
type Record struct {
	Key      Key
	OldValue value.Value
}

// link record types. A link is stored as a Record with a reserved Sub and
// is never handed to an Applier; it only demarcates where a
// savepoint begins in the circular buffer.
const linkSub = ^uint32(0)

func isLink(r Record) bool { return r.Key.Sub == linkSub }

func linkRecord(id SavepointID) Record {
	return Record{Key: Key{Obj: value.ObjID(id), Sub: linkSub}}
}

// Applier is implemented by the embedding Vm (or directly by a metaclass
// instance) to replay an undo record: restore old at key, or discard old
// without restoring it (when the owning object is itself being rolled back
// out of existence).
type Applier interface {
	ApplyUndo(key Key, old value.Value)
	DiscardUndo(key Key, old value.Value)
}

// Log is a bounded circular buffer of undo records grouped into nested
// savepoints.
//
// The zero Log is not ready to use; call New.
type Log struct {
	buf        []Record
	head       int // next write position
	count      int // live records currently in buf (<= len(buf))
	savepoints []SavepointID
	nextID     SavepointID
	maxSP      int

	// undoDepth tracks how many records UndoToSavepoint replays per call, a
	// rollback-cost instrumentation signal a host can surface alongside
	// objtab's GC stats.
	undoDepth *stats.Median
}

// New creates an undo log holding at most capacity records, spanning at
// most maxSavepoints nested savepoints.
func New(capacity, maxSavepoints int) *Log {
	dbg.Assert(capacity > 0, "undo log capacity must be positive")
	dbg.Assert(maxSavepoints > 0, "undo log savepoint cap must be positive")
	return &Log{
		buf:       make([]Record, capacity),
		maxSP:     maxSavepoints,
		undoDepth: stats.NewMedian(128),
	}
}

// MedianUndoDepth reports the median number of records replayed per
// UndoToSavepoint call over recent history, for diagnostics.
func (l *Log) MedianUndoDepth() float64 { return l.undoDepth.Get() }

// SavepointCount reports how many savepoints are currently open.
func (l *Log) SavepointCount() int { return len(l.savepoints) }

// CreateSavepoint opens a new savepoint, dropping the oldest one first if
// the log is already at its savepoint cap (spec §4.2: creating beyond the
// cap drops the oldest rather than failing).
func (l *Log) CreateSavepoint() SavepointID {
	if len(l.savepoints) >= l.maxSP {
		l.DropOldestSavepoint()
	}
	for l.count >= len(l.buf) && len(l.savepoints) > 0 {
		l.DropOldestSavepoint()
	}
	id := l.nextID
	l.nextID++ // wraps at 16 bits per SavepointID's width
	l.savepoints = append(l.savepoints, id)
	l.push(linkRecord(id))
	return id
}

// AddRecord appends a record to the current (innermost) savepoint. If no
// savepoint is open, the record is discarded: there is nothing to roll it
// back to, so keeping it would only waste buffer space. If appending would
// overflow the buffer, the oldest savepoint (and every record in it) is
// dropped first, per spec §4.2's memory-pressure behavior.
func (l *Log) AddRecord(r Record) {
	if len(l.savepoints) == 0 {
		return
	}
	dbg.Assert(!isLink(r), "add_record must not be called with a reserved link key")
	for l.count >= len(l.buf) && len(l.savepoints) > 0 {
		l.DropOldestSavepoint()
	}
	if len(l.savepoints) == 0 || l.count >= len(l.buf) {
		// Capacity is smaller than a single savepoint's worth of records
		// plus its link; nothing more can be dropped. The record is lost,
		// which is the documented degrade-gracefully behavior: undo
		// becomes less precise rather than the mutation failing.
		return
	}
	l.push(r)
}

func (l *Log) push(r Record) {
	l.buf[l.head] = r
	l.head = (l.head + 1) % len(l.buf)
	l.count++
}

// UndoToSavepoint rolls every record back to and including the savepoint's
// own link, in LIFO order, calling apply.ApplyUndo for each. It returns
// ErrNoUndoStates without mutating anything if id does not name a
// currently-open savepoint (including if it has already been dropped).
func (l *Log) UndoToSavepoint(id SavepointID, apply Applier) error {
	idx := l.indexOfSavepoint(id)
	if idx < 0 {
		return ErrNoUndoStates
	}

	// Pop records from the tail (most recently written) back through every
	// savepoint from the innermost open one down to and including id's own
	// link, replaying each via ApplyUndo.
	replayed := 0
	for l.count > 0 {
		r := l.popTail()
		if isLink(r) {
			poppedID := SavepointID(r.Key.Obj)
			l.savepoints = l.savepoints[:len(l.savepoints)-1]
			if poppedID == id {
				l.undoDepth.Record(float64(replayed))
				return nil
			}
			continue
		}
		apply.ApplyUndo(r.Key, r.OldValue)
		replayed++
	}
	l.undoDepth.Record(float64(replayed))
	return nil
}

// popTail removes and returns the most recently pushed record.
func (l *Log) popTail() Record {
	l.head = (l.head - 1 + len(l.buf)) % len(l.buf)
	l.count--
	return l.buf[l.head]
}

func (l *Log) indexOfSavepoint(id SavepointID) int {
	for i, sp := range l.savepoints {
		if sp == id {
			return i
		}
	}
	return -1
}

// DropOldestSavepoint discards the oldest open savepoint and every record
// that belongs to it, without replaying them, per spec §4.2's
// memory-pressure path. It is a no-op if no savepoint is open.
func (l *Log) DropOldestSavepoint() {
	if len(l.savepoints) == 0 {
		return
	}
	oldest := l.savepoints[0]
	l.savepoints = l.savepoints[1:]

	// The oldest savepoint's records sit at the tail of the logical
	// (oldest-first) ordering, i.e. immediately after l.head walking
	// forward, starting with that savepoint's own link record.
	tailIdx := (l.head - l.count + len(l.buf)) % len(l.buf)
	first := true
	for l.count > 0 {
		r := l.buf[tailIdx]
		if isLink(r) {
			if !first {
				break // the next savepoint's link, which stays
			}
			dbg.Assert(SavepointID(r.Key.Obj) == oldest, "drop_oldest_savepoint found a link for the wrong savepoint")
		}
		first = false
		tailIdx = (tailIdx + 1) % len(l.buf)
		l.count--
	}
}

// DropAll discards every record and every open savepoint without
// replaying anything.
func (l *Log) DropAll() {
	l.savepoints = l.savepoints[:0]
	l.count = 0
	l.head = 0
}
