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
	"errors"
	"fmt"
)

// The five sentinel causes of spec §7's error taxonomy, plus ErrNoUndoStates.
// Use errors.Is to test for a category without caring about the offending
// detail.
var (
	// ErrConfig covers unknown metaclass names, version mismatches, and
	// malformed image block headers: reported before any objects are
	// created, recoverable only by aborting the load.
	ErrConfig = errors.New("govm: configuration error")

	// ErrData covers out-of-range fields, dangling forward references, and
	// over-length strings encountered during image/save load.
	ErrData = errors.New("govm: data error")

	// ErrType covers wrong-arity native calls, wrong-tag operands, and
	// writes to immutable properties: catchable runtime errors.
	ErrType = errors.New("govm: type error")

	// ErrResource covers allocator and temporary-register exhaustion.
	// Per spec §7, undo log exhaustion is handled internally by dropping
	// savepoints and never surfaces as ErrResource.
	ErrResource = errors.New("govm: resource error")

	// ErrNoMatch is the distinguished "no alternative matched" result from
	// the grammar engine. Spec §7: "Surfaced as a distinguished value, not
	// an error" — callers are expected to check the bool returned
	// alongside a Match, not this sentinel; it exists so that code paths
	// that do want to treat it as an error (e.g. a CLI) can wrap it
	// uniformly.
	ErrNoMatch = errors.New("govm: no alternative matched")

	// ErrNoUndoStates is returned by UndoToSavepoint when there is nothing
	// left to roll back to. Spec §4.2: "reports 'no undo states' without
	// mutating state."
	ErrNoUndoStates = errors.New("govm: no undo states")
)

// opError is the common shape behind every taxonomy error: a sentinel cause
// plus enough context to say where it happened, mirroring the teacher's
// errParse/errCode split in error.go.
type opError struct {
	cause   error
	op      string
	context string
}

func (e *opError) Error() string {
	if e.context == "" {
		return fmt.Sprintf("govm: %s: %v", e.op, e.cause)
	}
	return fmt.Sprintf("govm: %s: %v (%s)", e.op, e.cause, e.context)
}

func (e *opError) Unwrap() error { return e.cause }

// configErrorf builds an ErrConfig-wrapping error for op, with context
// formatted by format/args.
func configErrorf(op, format string, args ...any) error {
	return &opError{cause: ErrConfig, op: op, context: fmt.Sprintf(format, args...)}
}

func dataErrorf(op, format string, args ...any) error {
	return &opError{cause: ErrData, op: op, context: fmt.Sprintf(format, args...)}
}

func typeErrorf(op, format string, args ...any) error {
	return &opError{cause: ErrType, op: op, context: fmt.Sprintf(format, args...)}
}

func resourceErrorf(op, format string, args ...any) error {
	return &opError{cause: ErrResource, op: op, context: fmt.Sprintf(format, args...)}
}
