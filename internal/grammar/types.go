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

// Package grammar implements the chart-style production matcher from
// spec §4.3: context-free grammar productions made of alternatives of
// tokens (nested productions, parts of speech, literals, lexer token
// types, and star-repeated groups), matched against a tokenized input
// with scoring used to rank ambiguous parses, and bound to a processor
// object and property values to build the result (spec §4.3 "Building
// the result").
package grammar

import "github.com/tads3/govm/internal/value"

// TokenKind distinguishes what a Token matches against the input.
type TokenKind uint8

const (
	// TokProduction matches by recursively matching a named production.
	TokProduction TokenKind = iota
	// TokPartOfSpeech matches a single word carrying the given
	// part-of-speech tag in the dictionary.
	TokPartOfSpeech
	// TokNSpeech matches exactly Count consecutive words all carrying the
	// given part-of-speech tag (e.g. a run of adjectives).
	TokNSpeech
	// TokLiteral matches one exact word (compared via the grammar's
	// string comparator, so case folding/truncation/equivalence still
	// apply).
	TokLiteral
	// TokTokType matches by the input lexer's token type (number, quoted
	// string, punctuation) rather than a dictionary entry.
	TokTokType
	// TokStar is spec §4.3's standalone "star" token kind: it consumes
	// every remaining word unconditionally, rather than repeating one
	// token zero or more times (that is Token.Star; see its
	// doc comment for the distinction).
	TokStar
)

// Token is one element of an Alternative.
type Token struct {
	Kind TokenKind

	Production   string // TokProduction
	PartOfSpeech string // TokPartOfSpeech, TokNSpeech
	Count        int    // TokNSpeech: exact run length (>=1)
	Literal      string // TokLiteral
	TokType      string // TokTokType

	// Star marks the token as zero-or-more repeated (a "star" *modifier*
	// applied to this token, e.g. "adj*"): the chart parser greedily
	// matches any number of repetitions, including zero, before the next
	// token. This is independent of TokStar, the unrelated standalone
	// token kind that always consumes the rest of the input.
	Star bool

	// Prop is the processor-object property this token's matched value is
	// bound to when the alternative's match is built (spec §4.3 "Building
	// the result"); zero means the token contributes no binding.
	Prop value.PropID
}

// Alternative is one of a Production's alternatives: a sequence of
// tokens plus a score and a badness used to rank competing parses when
// several alternatives (of this or other productions) both match the same
// input, and the processor object the match tree is built against.
//
// Ranking (spec §4.3): the highest-scoring completed match wins; ties
// break by lowest badness, then by which alternative was produced first.
// Matches with nonzero badness are only considered when no badness == 0
// match exists.
type Alternative struct {
	Tokens  []Token
	Score   int
	Badness int

	// ProcessorObjectID names the object template build_match_tree
	// instantiates for a Match of this alternative (spec §4.3 "Building
	// the result"). Zero means the alternative produces no processor
	// object of its own (e.g. a pass-through production).
	ProcessorObjectID value.ObjID
}

// Production is a named set of alternatives, i.e. one nonterminal of the
// grammar.
type Production struct {
	Name         string
	Alternatives []Alternative
}

// BoundValue is the value a Binding carries: either a nested Match (for a
// token that matched a sub-production) or a terminal input Word (for a
// token that matched a dictionary or lexer word directly).
type BoundValue struct {
	IsChild bool
	Child   *Match
	Word    Word
}

// Binding associates one Token.Prop with the value that token matched,
// per spec §4.3 "Building the result": "(property, value)" pairs
// assigned onto the match's processor object.
type Binding struct {
	Prop  value.PropID
	Value BoundValue
}

// Match is one successful parse: which alternative of which production
// matched, the word span it covered, the matched children for any
// TokProduction sub-matches, and — per spec §4.3
// "Building the result" — the processor object the match tree builds and
// the (property, value) bindings assigned onto it.
type Match struct {
	Production string
	Alt        int
	Start, End int // half-open word index range
	Score      int // this match's own alternative score plus all children's
	Badness    int // this match's own alternative badness plus all children's
	Children   []Match

	ProcessorObjectID value.ObjID
	Bindings          []Binding
}
