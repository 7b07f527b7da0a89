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

package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tads3/govm/internal/arena"
)

type node struct {
	val  int
	next *node
}

func TestNewAcrossBlocks(t *testing.T) {
	t.Parallel()

	var a arena.Arena[node]
	var head *node
	for i := range 1000 {
		n := arena.New(&a)
		n.val = i
		n.next = head
		head = n
	}

	require.Equal(t, 1000, a.Len())

	count := 0
	for n := head; n != nil; n = n.next {
		assert.Equal(t, 999-count, n.val)
		count++
	}
	assert.Equal(t, 1000, count)
}

func TestNewSlice(t *testing.T) {
	t.Parallel()

	var a arena.Arena[int]
	s := a.NewSlice(10)
	require.Len(t, s, 10)
	for i := range s {
		s[i] = i
	}
	for i, v := range s {
		assert.Equal(t, i, v)
	}
}

func TestFreeReusesMemory(t *testing.T) {
	t.Parallel()

	var a arena.Arena[int]
	for range 500 {
		arena.New(&a)
	}
	require.Equal(t, 500, a.Len())

	a.Free()
	assert.Equal(t, 0, a.Len())

	arena.New(&a)
	assert.Equal(t, 1, a.Len())
}
