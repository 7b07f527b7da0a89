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

package dict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tads3/govm/internal/strcmp"
)

func TestAddAndLookup(t *testing.T) {
	d := New(strcmp.New())
	d.Add("sword", "noun:weapon")
	d.Add("sword", "verb:fence")

	matches, ok := d.Lookup("Sword")
	require.True(t, ok)
	require.Len(t, matches, 2)
	assert.NotZero(t, matches[0].Flags&strcmp.RFCaseFold)
}

func TestLookupMiss(t *testing.T) {
	d := New(strcmp.New())
	d.Add("sword", "noun:weapon")
	_, ok := d.Lookup("shield")
	assert.False(t, ok)
}

func TestSuggestFindsCloseWords(t *testing.T) {
	d := New(strcmp.New())
	for _, w := range []string{"sword", "shield", "staff", "potion"} {
		d.Add(w, nil)
	}

	suggestions := d.Suggest("swrod", 2, 5)
	assert.Contains(t, suggestions, "sword")
}

func TestSuggestRespectsMax(t *testing.T) {
	d := New(strcmp.New())
	for _, w := range []string{"aa", "ab", "ac", "ad"} {
		d.Add(w, nil)
	}
	suggestions := d.Suggest("aa", 1, 2)
	assert.Len(t, suggestions, 2)
}
