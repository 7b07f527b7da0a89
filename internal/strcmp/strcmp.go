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

// Package strcmp implements the parameterized string comparator from
// spec §4.4: a hash/match pair configurable by truncation length, case
// sensitivity, and a reference-character equivalence table, used by the
// dictionary and by the grammar engine's literal-token matching.
package strcmp

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// ResultFlags report which accommodations a successful match made. The low
// three bits are spec §4.4's fixed bits; any higher bit is an
// equivalence rule's own result-flag mask, contributed only when that
// rule's mapping is what closed the gap between value and reference at
// some position.
type ResultFlags uint32

const (
	// RFMatch is set on every successful match (spec §4.4: 0x1).
	RFMatch ResultFlags = 1 << iota
	// RFCaseFold is set when the match required case-folding at some
	// position, whether via normal Unicode case folding or via case
	// folding used to satisfy an equivalence rule's value sequence.
	RFCaseFold
	// RFTruncated is set when value ran out before reference and the
	// match succeeded only because truncation is configured and enough of
	// value had already matched.
	RFTruncated
)

// maxFoldExpansion bounds how many value runes a single case-fold
// comparison may consume when searching for the shortest prefix whose
// fold equals a reference rune's fold (e.g. "ß" case-folding to "ss"):
// Unicode's full case-folding table never expands a single rune past a
// handful of runes, so this is a correctness-irrelevant safety bound, not
// a semantic limit.
const maxFoldExpansion = 4

// equivRule is one configured value-side rune sequence that counts as a
// match for its reference character, carrying the two result-flag masks
// selected by the case of the input character at the point the mapping
// fires (spec §3/§4.4/§6: "value_ch", "uc_result_flags",
// "lc_result_flags"). A reference character may have several rules (spec
// §3: "a list of value-side character sequences that count as a match").
type equivRule struct {
	value   []rune
	ucFlags ResultFlags
	lcFlags ResultFlags
}

// Comparator is a configured hash/match pair. Build one with New: the zero
// Comparator is case-insensitive but has no case mapper set, so it cannot
// fold case.
type Comparator struct {
	truncLen      int // 0 means "no truncation"
	caseSensitive bool
	foldWidth     bool
	equiv         map[rune][]equivRule
	caser         cases.Caser
}

// Option configures a Comparator at construction time.
type Option func(*Comparator)

// WithTruncation sets a truncation length n: CalcHash hashes only the first
// n runes, and Match accepts a value shorter than the reference once at
// least n of its runes have matched. A value longer than the reference
// still does not match.
func WithTruncation(n int) Option {
	return func(c *Comparator) { c.truncLen = n }
}

// WithCaseSensitive disables the default case-folding behavior.
func WithCaseSensitive() Option {
	return func(c *Comparator) { c.caseSensitive = true }
}

// WithWidthFold folds east-asian fullwidth/halfwidth rune variants to a
// single canonical form before comparison, so e.g. a fullwidth "Ａ" typed
// from an IME matches the halfwidth "A" a grammar literal is written with.
func WithWidthFold() Option {
	return func(c *Comparator) { c.foldWidth = true }
}

// WithEquivalence registers that, wherever ref appears in a reference
// string, the rune sequence value is also accepted in its place on the
// value side, contributing ucFlags to the match result if the input
// character at that position was upper-case, or lcFlags if it was
// lower-case. Calling WithEquivalence more than once for the same ref
// registers another acceptable value sequence for it (spec §3's "list of
// value-side character sequences"); e.g. a reference 'ß' accepting the
// value sequence "ss".
func WithEquivalence(ref rune, value []rune, ucFlags, lcFlags ResultFlags) Option {
	return func(c *Comparator) {
		if c.equiv == nil {
			c.equiv = make(map[rune][]equivRule)
		}
		seq := append([]rune(nil), value...)
		c.equiv[ref] = append(c.equiv[ref], equivRule{value: seq, ucFlags: ucFlags, lcFlags: lcFlags})
	}
}

// New builds a Comparator from the given options.
func New(opts ...Option) *Comparator {
	c := &Comparator{caser: cases.Fold()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// widthFold applies the comparator's configured east-asian width folding
// to s, if enabled. Unlike case folding, width folding never depends on
// where in the string a character sits, so it is always safe to apply to
// the whole operand up front rather than character by character.
func (c *Comparator) widthFold(s string) string {
	if !c.foldWidth {
		return s
	}
	return width.Fold.String(s)
}

// foldRune returns ch's case-fold expansion (usually itself, occasionally
// more than one rune, e.g. "ß" folding to "ss").
func (c *Comparator) foldRune(ch rune) []rune {
	return []rune(c.caser.String(string(ch)))
}

// CalcHash computes a hash of s under this comparator's configuration,
// walking it the same character-by-character way Match does so that any
// two strings Match accepts always hash identically (spec §4.4:
// "calc_hash"). Spec: "if a character has an equivalence mapping,
// substitute the canonical value string and fold those characters
// instead"; the canonical (first-registered) rule for a reference
// character is used, since hashing cannot depend on which of several
// equally-valid spellings produced the string being hashed.
func (c *Comparator) CalcHash(s string) uint16 {
	runes := []rune(c.widthFold(s))
	limit := len(runes)
	if c.truncLen > 0 && c.truncLen < limit {
		limit = c.truncLen
	}

	var hash uint32
	for i := 0; i < limit; i++ {
		for _, fr := range c.hashFold(runes[i]) {
			hash = (hash + uint32(fr)) & 0xFFFF
		}
	}
	return uint16(hash)
}

func (c *Comparator) hashFold(ch rune) []rune {
	if rules := c.equiv[ch]; len(rules) > 0 {
		return rules[0].value
	}
	if !c.caseSensitive {
		if folded := c.foldRune(ch); len(folded) != 1 || folded[0] != ch {
			return folded
		}
	}
	return []rune{ch}
}

// Match compares value against reference, walking both character by
// character (spec §4.4 "match"): an exact match advances both by one; a
// case-fold agreement (checked only when the comparator is
// case-insensitive) advances both, setting RFCaseFold; otherwise, if
// reference's current character has an equivalence mapping, a match
// against its value sequence advances value by the matched span and
// reference by one, ORing in the mapping's case-selected flags; otherwise
// the match fails. Reference running out before value always fails;
// value running out before reference succeeds only if truncation is
// configured and enough of value matched first.
func (c *Comparator) Match(value, reference string) (ResultFlags, bool) {
	v := []rune(c.widthFold(value))
	r := []rune(c.widthFold(reference))

	var flags ResultFlags
	pv, pr := 0, 0
	for pv < len(v) && pr < len(r) {
		rch := r[pr]

		if v[pv] == rch {
			pv++
			pr++
			continue
		}

		if !c.caseSensitive {
			if n, ok := c.foldMatchLen(v[pv:], rch); ok {
				flags |= RFCaseFold
				pv += n
				pr++
				continue
			}
		}

		if n, ucFlags, lcFlags, foldUsed, ok := c.equivMatchLen(v[pv:], rch); ok {
			if foldUsed {
				flags |= RFCaseFold
			}
			if unicode.IsUpper(v[pv]) {
				flags |= ucFlags
			} else {
				flags |= lcFlags
			}
			pv += n
			pr++
			continue
		}

		return 0, false
	}

	if pr == len(r) {
		if pv < len(v) {
			// Reference exhausted with value characters left over: a
			// value never matches a shorter reference, truncation or not.
			return 0, false
		}
	} else {
		// Loop only stops early like this when pv == len(v): value ran
		// out before reference did.
		if c.truncLen <= 0 || pv < c.truncLen {
			return 0, false
		}
		flags |= RFTruncated
	}

	flags |= RFMatch
	return flags, true
}

// foldMatchLen checks whether some prefix of v case-folds to the same
// value as rch, trying increasingly long prefixes so a fold that expands
// to more than one rune (e.g. "ß" to "ss") is still found. It returns the
// number of v runes consumed.
func (c *Comparator) foldMatchLen(v []rune, rch rune) (int, bool) {
	target := c.caser.String(string(rch))
	max := len(v)
	if max > maxFoldExpansion {
		max = maxFoldExpansion
	}
	for k := 1; k <= max; k++ {
		if c.caser.String(string(v[:k])) == target {
			return k, true
		}
	}
	return 0, false
}

// equivMatchLen tries each configured equivalence rule for rch in
// registration order against the start of v, returning the consumed
// length, the matched rule's case-selected flag masks, whether satisfying
// the rule itself required case-folding a rune, and whether any rule
// matched.
func (c *Comparator) equivMatchLen(v []rune, rch rune) (n int, ucFlags, lcFlags ResultFlags, foldUsed, ok bool) {
	for _, rule := range c.equiv[rch] {
		if len(rule.value) > len(v) {
			continue
		}
		matched := true
		usedFold := false
		for i, want := range rule.value {
			got := v[i]
			switch {
			case got == want:
			case !c.caseSensitive && c.caser.String(string(got)) == c.caser.String(string(want)):
				usedFold = true
			default:
				matched = false
			}
			if !matched {
				break
			}
		}
		if matched {
			return len(rule.value), rule.ucFlags, rule.lcFlags, usedFold, true
		}
	}
	return 0, 0, 0, false, false
}

// MatchChars does a raw, unconfigured rune-slice comparison: it reports
// whether a and b are identical, with no case folding, truncation or
// equivalence mapping, and returns no matched-prefix length. Spec §4.4:
// "match_chars".
func MatchChars(a, b []rune) bool { return matchChars(a, b) }

func matchChars(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
