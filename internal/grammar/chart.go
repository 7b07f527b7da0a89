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

package grammar

import (
	"sort"

	"github.com/tads3/govm/internal/arena"
	"github.com/tads3/govm/internal/dbg"
	"github.com/tads3/govm/internal/dict"
	"github.com/tads3/govm/internal/strcmp"
)

// Word is one tokenized unit of input handed to Match: its literal text,
// its lexer token type (for TokTokType), and the part-of-speech tags the
// dictionary associates with it (for TokPartOfSpeech/TokNSpeech).
type Word struct {
	Text          string
	TokType       string
	PartsOfSpeech []string
}

func (w Word) hasPartOfSpeech(tag string) bool {
	for _, p := range w.PartsOfSpeech {
		if p == tag {
			return true
		}
	}
	return false
}

// wordHasPartOfSpeech checks w's pre-tagged parts of speech first, falling
// back to a dictionary lookup (by the grammar's comparator) for words the
// tokenizer left untagged — the "dictionary lookup" step spec §4.3
// describes as part of grammar matching.
func (g *Grammar) wordHasPartOfSpeech(w Word, tag string) bool {
	if w.hasPartOfSpeech(tag) {
		return true
	}
	if len(w.PartsOfSpeech) > 0 || g.dict == nil {
		return false
	}
	entries, ok := g.dict.Lookup(w.Text)
	if !ok {
		return false
	}
	for _, e := range entries {
		if pos, ok := e.Payload.(string); ok && pos == tag {
			return true
		}
	}
	return false
}

// Grammar is a named collection of productions, matched against tokenized
// input via a recursive chart: matchProduction memoizes nothing across
// calls to Match (each call gets a fresh cycle-guard set), but within one
// call, shares sub-derivations naturally through Go's call graph the same
// way a chart parser shares chart cells.
type Grammar struct {
	productions map[string]*Production
	order       []string // declaration order, for deterministic tie-breaks
	dict        *dict.Dictionary
	cmp         *strcmp.Comparator
	circular    map[string]bool
}

// New creates an empty grammar whose TokLiteral tokens match using cmp and
// whose TokPartOfSpeech/TokNSpeech tokens resolve words via dictionary.
func New(cmp *strcmp.Comparator, dictionary *dict.Dictionary) *Grammar {
	return &Grammar{
		productions: make(map[string]*Production),
		dict:        dictionary,
		cmp:         cmp,
	}
}

// AddProduction registers (or replaces) a production.
func (g *Grammar) AddProduction(p Production) {
	if _, exists := g.productions[p.Name]; !exists {
		g.order = append(g.order, p.Name)
	}
	g.productions[p.Name] = &p
	g.circular = nil // stale; recomputed lazily by CircularProductions
}

// ProductionCount reports how many distinct productions are registered, for
// diagnostics.
func (g *Grammar) ProductionCount() int { return len(g.productions) }

// CircularProductions reports every production name found, via the
// production dependency graph's strongly-connected components (detected
// with internal/scc), to be directly or mutually left-recursive: some
// alternative's very first token is itself a reference to a production
// reachable back to the same name without consuming any input first.
// These are not errors — left recursion is handled correctly by the
// cycle guard in matchProduction — but a host may want to flag them as
// grammar smells.
func (g *Grammar) CircularProductions() []string {
	if g.circular == nil {
		g.circular = computeCircular(g)
	}
	names := make([]string, 0, len(g.circular))
	for name := range g.circular {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type seenKey struct {
	name string
	pos  int
}

type stepResult struct {
	end   int
	child *Match

	// word and hasWord carry the single matched Word for terminal token
	// kinds (TokPartOfSpeech, TokLiteral, TokTokType), so matchTokens can
	// bind it to the token's Prop without re-deriving it from words/pos.
	word    Word
	hasWord bool
}

type tokSeqResult struct {
	end      int
	children []Match
	bindings []Binding
}

// Match finds the best-ranked way for root to match the entire word
// sequence: MatchAll's first result (badness-0 matches preferred, then
// highest score, then lowest badness). It reports false if no alternative
// of root, recursively, covers every word.
func (g *Grammar) Match(root string, words []Word) (Match, bool) {
	all := g.MatchAll(root, words)
	if len(all) == 0 {
		return Match{}, false
	}
	return all[0], true
}

// MatchAll returns every way root can match the entire word sequence,
// ranked per spec §4.3: the highest score wins; ties break by lowest
// badness, then by which alternative was produced first (sort.SliceStable
// over matchProduction's declaration-ordered output preserves this last
// tie-break for free). A badness == 0 match, if any exists, is always
// preferred over every badness != 0 match, regardless of score.
//
// All Match.Children slices returned are carved from a single arena scoped
// to this call; they remain valid for as long as the caller holds onto the
// returned matches (the arena itself is simply garbage collected once
// nothing references it, same as any other Go value — Free is only worth
// calling when the same Arena is reused across several parses, which a
// single MatchAll call does not do).
func (g *Grammar) MatchAll(root string, words []Word) []Match {
	seen := make(map[seenKey]bool)
	a := &arena.Arena[Match]{}
	candidates := g.matchProduction(root, words, 0, seen, a)

	var full []Match
	hasZeroBadness := false
	for _, m := range candidates {
		if m.End != len(words) {
			continue
		}
		full = append(full, m)
		if m.Badness == 0 {
			hasZeroBadness = true
		}
	}

	if hasZeroBadness {
		kept := full[:0]
		for _, m := range full {
			if m.Badness == 0 {
				kept = append(kept, m)
			}
		}
		full = kept
	}

	sort.SliceStable(full, func(i, j int) bool {
		if full[i].Score != full[j].Score {
			return full[i].Score > full[j].Score
		}
		return full[i].Badness < full[j].Badness
	})
	return full
}

func (g *Grammar) matchProduction(name string, words []Word, pos int, seen map[seenKey]bool, a *arena.Arena[Match]) []Match {
	key := seenKey{name, pos}
	if seen[key] {
		dbg.Log(nil, "grammar.matchProduction", "cycle guard tripped for %s at %d", name, pos)
		return nil
	}
	prod, ok := g.productions[name]
	if !ok {
		return nil
	}
	seen[key] = true
	defer delete(seen, key)

	var out []Match
	for altIdx, alt := range prod.Alternatives {
		for _, m := range g.matchAlternative(alt, words, pos, seen, a) {
			m.Production = name
			m.Alt = altIdx
			out = append(out, m)
		}
	}
	return out
}

func (g *Grammar) matchAlternative(alt Alternative, words []Word, pos int, seen map[seenKey]bool, a *arena.Arena[Match]) []Match {
	seqResults := g.matchTokens(alt.Tokens, 0, words, pos, seen, a)
	out := make([]Match, 0, len(seqResults))
	for _, r := range seqResults {
		score := alt.Score
		badness := alt.Badness
		children := a.NewSlice(len(r.children))
		for i, c := range r.children {
			children[i] = c
			score += c.Score
			badness += c.Badness
		}
		out = append(out, Match{
			Start: pos, End: r.end,
			Score: score, Badness: badness,
			Children:          children,
			ProcessorObjectID:  alt.ProcessorObjectID,
			Bindings:           r.bindings,
		})
	}
	return out
}

func (g *Grammar) matchTokens(tokens []Token, idx int, words []Word, pos int, seen map[seenKey]bool, a *arena.Arena[Match]) []tokSeqResult {
	if idx == len(tokens) {
		return []tokSeqResult{{end: pos}}
	}
	tok := tokens[idx]

	var steps []stepResult
	if tok.Star {
		steps = g.matchStar(tok, words, pos, seen, a)
	} else {
		steps = g.matchOne(tok, words, pos, seen, a)
	}

	var out []tokSeqResult
	for _, st := range steps {
		rest := g.matchTokens(tokens, idx+1, words, st.end, seen, a)
		for _, r := range rest {
			var children []Match
			if st.child != nil {
				children = append(children, *st.child)
			}
			children = append(children, r.children...)

			var bindings []Binding
			if tok.Prop != 0 {
				switch {
				case st.child != nil:
					bindings = append(bindings, Binding{Prop: tok.Prop, Value: BoundValue{IsChild: true, Child: st.child}})
				case st.hasWord:
					bindings = append(bindings, Binding{Prop: tok.Prop, Value: BoundValue{Word: st.word}})
				}
			}
			bindings = append(bindings, r.bindings...)

			out = append(out, tokSeqResult{end: r.end, children: children, bindings: bindings})
		}
	}
	return out
}

// matchOne matches a single (non-star) occurrence of tok at pos.
func (g *Grammar) matchOne(tok Token, words []Word, pos int, seen map[seenKey]bool, a *arena.Arena[Match]) []stepResult {
	switch tok.Kind {
	case TokProduction:
		matches := g.matchProduction(tok.Production, words, pos, seen, a)
		out := make([]stepResult, len(matches))
		for i := range matches {
			m := matches[i]
			out[i] = stepResult{end: m.End, child: &m}
		}
		return out

	case TokPartOfSpeech:
		if pos >= len(words) || !g.wordHasPartOfSpeech(words[pos], tok.PartOfSpeech) {
			return nil
		}
		return []stepResult{{end: pos + 1, word: words[pos], hasWord: true}}

	case TokNSpeech:
		if tok.Count <= 0 || pos+tok.Count > len(words) {
			return nil
		}
		for i := 0; i < tok.Count; i++ {
			if !g.wordHasPartOfSpeech(words[pos+i], tok.PartOfSpeech) {
				return nil
			}
		}
		return []stepResult{{end: pos + tok.Count}}

	case TokLiteral:
		if pos >= len(words) {
			return nil
		}
		if _, ok := g.cmp.Match(words[pos].Text, tok.Literal); !ok {
			return nil
		}
		return []stepResult{{end: pos + 1, word: words[pos], hasWord: true}}

	case TokTokType:
		if pos >= len(words) || words[pos].TokType != tok.TokType {
			return nil
		}
		return []stepResult{{end: pos + 1, word: words[pos], hasWord: true}}

	case TokStar:
		return []stepResult{{end: len(words)}}

	default:
		dbg.Assert(false, "unknown token kind %d", tok.Kind)
		return nil
	}
}

// matchStar matches zero or more repetitions of tok (with Star cleared),
// returning every distinct reachable end position.
func (g *Grammar) matchStar(tok Token, words []Word, pos int, seen map[seenKey]bool, a *arena.Arena[Match]) []stepResult {
	base := tok
	base.Star = false

	reached := map[int]bool{pos: true}
	frontier := []int{pos}
	for len(frontier) > 0 {
		var next []int
		for _, e := range frontier {
			for _, st := range g.matchOne(base, words, e, seen, a) {
				if !reached[st.end] {
					reached[st.end] = true
					next = append(next, st.end)
				}
			}
		}
		frontier = next
	}

	ends := make([]int, 0, len(reached))
	for e := range reached {
		ends = append(ends, e)
	}
	sort.Ints(ends)

	out := make([]stepResult, len(ends))
	for i, e := range ends {
		out[i] = stepResult{end: e}
	}
	return out
}
