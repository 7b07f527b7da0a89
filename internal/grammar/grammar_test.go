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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tads3/govm/internal/dict"
	"github.com/tads3/govm/internal/strcmp"
)

func words(specs ...Word) []Word { return specs }

func w(text, pos string) Word { return Word{Text: text, TokType: "word", PartsOfSpeech: []string{pos}} }

func TestMatchSimpleLiteral(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name: "takeVerb",
		Alternatives: []Alternative{
			{Tokens: []Token{{Kind: TokLiteral, Literal: "take"}}},
		},
	})

	m, ok := g.Match("takeVerb", words(w("take", "verb")))
	require.True(t, ok)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, 1, m.End)
}

func TestMatchNestedProduction(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name: "verb",
		Alternatives: []Alternative{{Tokens: []Token{{Kind: TokLiteral, Literal: "take"}}}},
	})
	g.AddProduction(Production{
		Name: "noun",
		Alternatives: []Alternative{{Tokens: []Token{{Kind: TokPartOfSpeech, PartOfSpeech: "noun"}}}},
	})
	g.AddProduction(Production{
		Name: "command",
		Alternatives: []Alternative{{Tokens: []Token{
			{Kind: TokProduction, Production: "verb"},
			{Kind: TokProduction, Production: "noun"},
		}}},
	})

	m, ok := g.Match("command", words(w("take", "verb"), w("lamp", "noun")))
	require.True(t, ok)
	require.Len(t, m.Children, 2)
	assert.Equal(t, "verb", m.Children[0].Production)
	assert.Equal(t, "noun", m.Children[1].Production)
}

func TestMatchPicksLowestBadness(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name: "greeting",
		Alternatives: []Alternative{
			{Tokens: []Token{{Kind: TokLiteral, Literal: "hello"}}, Badness: 10},
			{Tokens: []Token{{Kind: TokLiteral, Literal: "hello"}}, Badness: 0},
		},
	})

	m, ok := g.Match("greeting", words(w("hello", "interj")))
	require.True(t, ok)
	assert.Equal(t, 1, m.Alt)
	assert.Equal(t, 0, m.Badness)
}

func TestMatchNoMatchReturnsFalse(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name:         "verb",
		Alternatives: []Alternative{{Tokens: []Token{{Kind: TokLiteral, Literal: "take"}}}},
	})

	_, ok := g.Match("verb", words(w("drop", "verb")))
	assert.False(t, ok)
}

func TestMatchStarTokenZeroOrMore(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name: "nounPhrase",
		Alternatives: []Alternative{{Tokens: []Token{
			{Kind: TokPartOfSpeech, PartOfSpeech: "adj", Star: true},
			{Kind: TokPartOfSpeech, PartOfSpeech: "noun"},
		}}},
	})

	m, ok := g.Match("nounPhrase", words(w("rusty", "adj"), w("old", "adj"), w("lamp", "noun")))
	require.True(t, ok)
	assert.Equal(t, 3, m.End)

	m2, ok2 := g.Match("nounPhrase", words(w("lamp", "noun")))
	require.True(t, ok2)
	assert.Equal(t, 1, m2.End)
}

func TestLeftRecursiveProductionDoesNotHang(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name: "list",
		Alternatives: []Alternative{
			{Tokens: []Token{
				{Kind: TokProduction, Production: "list"},
				{Kind: TokLiteral, Literal: "and"},
				{Kind: TokPartOfSpeech, PartOfSpeech: "noun"},
			}},
			{Tokens: []Token{{Kind: TokPartOfSpeech, PartOfSpeech: "noun"}}},
		},
	})

	m, ok := g.Match("list", words(w("lamp", "noun"), w("and", "conj"), w("sword", "noun")))
	require.True(t, ok)
	assert.Equal(t, 3, m.End)

	assert.Contains(t, g.CircularProductions(), "list")
}

func TestNSpeechMatchesExactRun(t *testing.T) {
	g := New(strcmp.New(), dict.New(strcmp.New()))
	g.AddProduction(Production{
		Name:         "twoAdjectives",
		Alternatives: []Alternative{{Tokens: []Token{{Kind: TokNSpeech, PartOfSpeech: "adj", Count: 2}}}},
	})

	_, ok := g.Match("twoAdjectives", words(w("rusty", "adj")))
	assert.False(t, ok)

	m, ok := g.Match("twoAdjectives", words(w("rusty", "adj"), w("old", "adj")))
	require.True(t, ok)
	assert.Equal(t, 2, m.End)
}
