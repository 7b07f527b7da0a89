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

package strcmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchExactSetsOnlyRFMatch(t *testing.T) {
	c := New()
	flags, ok := c.Match("sword", "sword")
	assert.True(t, ok)
	assert.Equal(t, RFMatch, flags)
}

func TestMatchCaseFold(t *testing.T) {
	c := New()
	flags, ok := c.Match("Sword", "sword")
	assert.True(t, ok)
	assert.NotZero(t, flags&RFCaseFold)
}

func TestMatchCaseSensitiveRejectsFold(t *testing.T) {
	c := New(WithCaseSensitive())
	_, ok := c.Match("Sword", "sword")
	assert.False(t, ok)
}

func TestMatchTruncation(t *testing.T) {
	c := New(WithTruncation(4))
	flags, ok := c.Match("swor", "swordsman")
	assert.True(t, ok)
	assert.NotZero(t, flags&RFTruncated)
}

func TestMatchTruncationRejectsShortPrefix(t *testing.T) {
	c := New(WithTruncation(4))
	_, ok := c.Match("swo", "swordsman")
	assert.False(t, ok)
}

func TestMatchFailsWhenReferenceExhaustedFirst(t *testing.T) {
	c := New(WithTruncation(4))
	_, ok := c.Match("swordsman", "swor")
	assert.False(t, ok)
}

// TestMatchEquivalenceMultiCharValue exercises an equivalence rule whose
// value side is more than one character (spec §3's "ß" accepting "ss"
// example), using '&' so the custom table — not Unicode's own case
// folding — is what closes the gap.
func TestMatchEquivalenceMultiCharValue(t *testing.T) {
	c := New(WithEquivalence('&', []rune("and"), 0x10, 0x20))
	flags, ok := c.Match("rockandroll", "rock&roll")
	assert.True(t, ok)
	assert.NotZero(t, flags&0x20)
}

// TestMatchEquivalenceSelectsFlagsByCase reproduces spec §4.4's worked
// example: an 'e' equivalence accepting value-side 'é', with distinct
// uc/lc result-flag masks, matched against a mixed-case accented value.
func TestMatchEquivalenceSelectsFlagsByCase(t *testing.T) {
	c := New(
		WithTruncation(4),
		WithEquivalence('e', []rune{'é'}, 0x100, 0x200),
	)

	flags, ok := c.Match("eleph", "elephant")
	assert.True(t, ok)
	assert.Equal(t, RFMatch|RFTruncated, flags)

	flags, ok = c.Match("Éléphant", "elephant")
	assert.True(t, ok)
	assert.Equal(t, ResultFlags(0x303), flags)

	_, ok = c.Match("ele", "elephant")
	assert.False(t, ok)
}

func TestCalcHashConsistentWithMatch(t *testing.T) {
	c := New()
	assert.Equal(t, c.CalcHash("Sword"), c.CalcHash("sword"))

	flags, ok := c.Match("Sword", "sword")
	assert.True(t, ok)
	assert.NotZero(t, flags)
}

func TestCalcHashAgreesAcrossEquivalence(t *testing.T) {
	c := New(WithEquivalence('e', []rune{'é'}, 0x100, 0x200))
	assert.Equal(t, c.CalcHash("elephant"), c.CalcHash("Éléphant"))
}

func TestCalcHashDiffersForDistinctWords(t *testing.T) {
	c := New()
	assert.NotEqual(t, c.CalcHash("sword"), c.CalcHash("shield"))
}

func TestMatchCharsRaw(t *testing.T) {
	assert.True(t, MatchChars([]rune("abc"), []rune("abc")))
	assert.False(t, MatchChars([]rune("abc"), []rune("abd")))
	assert.False(t, MatchChars([]rune("ab"), []rune("abc")))
}
