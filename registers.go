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

import "github.com/tads3/govm/internal/sync2"

// Register is one temporary numeric register, scratch space for operations
// like BigNumber arithmetic that need working storage wider than a single
// Value but don't want to allocate a heap object for it. Spec §5:
// "Temporary register pools for numeric operations are allocated from a
// per-process cache with explicit acquire/release handles; callers must
// release before the next GC pass."
type Register struct {
	words [4]uint64
}

// Reset clears a register's contents for reuse.
func (r *Register) Reset() { *r = Register{} }

// registerPool is the per-process cache of Registers.
var registerPool = &sync2.Pool[Register]{Reset: (*Register).Reset}

// AcquireRegister checks out a temporary register. The caller must call
// the returned release function before the next GC pass runs; holding a
// register across a pass boundary would hide it from the GC's root
// enumeration, since registers are not traced as object references.
func AcquireRegister() (reg *Register, release func()) {
	return registerPool.Get()
}
