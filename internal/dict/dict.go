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

// Package dict implements the dictionary named in spec §3: a hash table
// keyed by a comparator's hash, holding every word a grammar literal or
// part-of-speech token can reference, plus a spelling-correction trie
// (supplemented from original_source/loaddatabase.c's approximate-match
// behavior, which the distilled spec names but does not detail as an
// operation).
package dict

import "github.com/tads3/govm/internal/strcmp"

// Entry binds a dictionary word to whatever payload the grammar engine
// associates with it (typically a part-of-speech/vocabulary property
// list); Dictionary treats Payload opaquely.
type Entry struct {
	Word    string
	Payload any
}

// Dictionary is a comparator-hash-keyed multimap from word to entries,
// plus a trie over the same words used for spelling suggestions.
type Dictionary struct {
	cmp     *strcmp.Comparator
	buckets map[uint16][]Entry
	trie    *trieNode
	size    int
}

// New creates an empty dictionary that hashes and matches words using cmp.
func New(cmp *strcmp.Comparator) *Dictionary {
	return &Dictionary{
		cmp:     cmp,
		buckets: make(map[uint16][]Entry),
		trie:    newTrieNode(),
	}
}

// Add inserts word with the given payload. Multiple payloads may be
// registered under the same word (e.g. a noun that is also a verb).
func (d *Dictionary) Add(word string, payload any) {
	h := d.cmp.CalcHash(word)
	d.buckets[h] = append(d.buckets[h], Entry{Word: word, Payload: payload})
	d.trie.insert([]rune(word), 0)
	d.size++
}

// Size reports how many entries have been added.
func (d *Dictionary) Size() int { return d.size }

// Lookup returns every entry whose word matches query under the
// dictionary's comparator, alongside the match flags for each (case
// fold/truncation/equivalence accommodations used), and whether any
// entry matched at all.
func (d *Dictionary) Lookup(query string) ([]MatchedEntry, bool) {
	h := d.cmp.CalcHash(query)
	candidates := d.buckets[h]
	if len(candidates) == 0 {
		return nil, false
	}
	var out []MatchedEntry
	for _, e := range candidates {
		flags, ok := d.cmp.Match(query, e.Word)
		if !ok {
			// Hash collision between words the comparator does not
			// actually consider equal; skip it.
			continue
		}
		out = append(out, MatchedEntry{Entry: e, Flags: flags})
	}
	return out, len(out) > 0
}

// MatchedEntry is one Lookup result.
type MatchedEntry struct {
	Entry
	Flags strcmp.ResultFlags
}

// Suggest returns up to max dictionary words within editDistance character
// edits (insertion, deletion, substitution) of word, ordered by distance
// then lexically. It is used to propose a correction for a mistyped
// command word.
func (d *Dictionary) Suggest(word string, editDistance, max int) []string {
	runes := []rune(word)
	var hits []suggestion
	d.trie.walk(nil, func(candidate []rune, node *trieNode) {
		if !node.terminal {
			return
		}
		dist := levenshtein(runes, candidate, editDistance)
		if dist < 0 {
			return
		}
		hits = append(hits, suggestion{word: string(candidate), dist: dist})
	})

	sortSuggestions(hits)
	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.word
	}
	return out
}

type suggestion struct {
	word string
	dist int
}

func sortSuggestions(hits []suggestion) {
	// Small-N insertion sort: suggestion lists are short (bounded by trie
	// fan-out at a shallow edit distance), so this avoids pulling in
	// sort.Slice for a handful of comparisons.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && less(hits[j], hits[j-1]); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

func less(a, b suggestion) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.word < b.word
}

// levenshtein returns the edit distance between a and b if it is at most
// limit, or -1 if it exceeds limit (the caller only cares about bounded
// distances, so this avoids computing an exact large distance).
func levenshtein(a, b []rune, limit int) int {
	if abs(len(a)-len(b)) > limit {
		return -1
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	dist := prev[len(b)]
	if dist > limit {
		return -1
	}
	return dist
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
