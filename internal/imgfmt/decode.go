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

package imgfmt

import (
	"fmt"

	"github.com/tads3/govm/internal/grammar"
	"github.com/tads3/govm/internal/strcmp"
	"github.com/tads3/govm/internal/value"
)

// ObjectRecord is one decoded entry from an objects block: the id it must
// be installed at and the raw metaclass-specific payload to hand to that
// metaclass's Factory.CreateForImageLoad.
type ObjectRecord struct {
	ID            uint32
	MetaclassName string
	Data          []byte
}

// DecodeObjects decodes an objects block payload (blockObjects) into its
// constituent per-object records. It does not itself call into objtab or
// metaclass, keeping this package ignorant of the object table's id space
// and the registry's factory lookup — the caller (the root package's image
// loader) owns installing each record in id order.
func DecodeObjects(payload []byte) ([]ObjectRecord, error) {
	r := newByteReader(payload)
	count := int(r.u32())
	out := make([]ObjectRecord, 0, count)
	for i := 0; i < count; i++ {
		rec := ObjectRecord{
			ID:            r.u32(),
			MetaclassName: r.str(),
			Data:          r.blob(),
		}
		out = append(out, rec)
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("imgfmt: decode objects block: %w", err)
	}
	return out, nil
}

// wireMatchType is spec §6's per-token match_type tag, distinct from
// grammar.TokenKind's in-memory ordinals (which predate this wire format
// and are kept stable for compatibility with hand-authored grammars built
// directly against the grammar package).
type wireMatchType uint8

const (
	wireProduction wireMatchType = 1
	wireSpeech     wireMatchType = 2
	wireLiteral    wireMatchType = 3
	wireTokType    wireMatchType = 4
	wireStar       wireMatchType = 5
	wireNSpeech    wireMatchType = 6
)

// DecodeGrammar decodes a grammar block payload (blockGrammar) into the
// named productions it defines, per spec §6's per-production/alternative/
// token layout. Production name framing (a string before its alternative
// count) is kept as a govm-local addition to the quoted wire layout, which
// names productions only implicitly by reference; dropping it would
// require id-addressed productions, a larger structural change this
// decoder does not make.
func DecodeGrammar(payload []byte) ([]grammar.Production, error) {
	r := newByteReader(payload)
	prodCount := int(r.u32())
	prods := make([]grammar.Production, 0, prodCount)
	for i := 0; i < prodCount; i++ {
		p := grammar.Production{Name: r.str()}
		altCount := int(r.u16())
		p.Alternatives = make([]grammar.Alternative, 0, altCount)
		for j := 0; j < altCount; j++ {
			alt := grammar.Alternative{
				Score:             int(r.i16()),
				Badness:           int(r.i16()),
				ProcessorObjectID: value.ObjID(r.u32()),
			}
			tokCount := int(r.u16())
			alt.Tokens = make([]grammar.Token, 0, tokCount)
			for k := 0; k < tokCount; k++ {
				alt.Tokens = append(alt.Tokens, decodeToken(r))
			}
			p.Alternatives = append(p.Alternatives, alt)
		}
		prods = append(prods, p)
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("imgfmt: decode grammar block: %w", err)
	}
	return prods, nil
}

func decodeToken(r *byteReader) grammar.Token {
	prop := value.PropID(r.u16())
	matchType := wireMatchType(r.u8())

	tok := grammar.Token{Prop: prop}
	switch matchType {
	case wireProduction:
		// The wire format addresses the target production by
		// production_object_id; this decoder has no id-to-name table to
		// resolve it against (productions are matched by name elsewhere
		// in this package), so it carries the id through as a
		// placeholder name rather than inventing one.
		id := r.u32()
		tok.Kind = grammar.TokProduction
		tok.Production = fmt.Sprintf("prod#%d", id)

	case wireSpeech:
		id := r.u16()
		tok.Kind = grammar.TokPartOfSpeech
		tok.PartOfSpeech = fmt.Sprintf("vocab#%d", id)

	case wireLiteral:
		tok.Kind = grammar.TokLiteral
		tok.Literal = r.str()

	case wireTokType:
		id := r.u32()
		tok.Kind = grammar.TokTokType
		tok.TokType = fmt.Sprintf("enum#%d", id)

	case wireStar:
		tok.Kind = grammar.TokStar

	case wireNSpeech:
		// Wire NSpeech carries a list of acceptable vocabulary
		// properties for one word; grammar.Token's TokNSpeech instead
		// models an exact run of Count words sharing one tag (spec
		// §4.3's worked NSpeech example, "two consecutive adjectives").
		// The two aren't equivalent, so rather than silently changing
		// established match semantics, the wire list's first property
		// becomes the single matched tag and its length is carried
		// through as Count.
		vocabCount := int(r.u16())
		var first uint16
		for n := 0; n < vocabCount; n++ {
			id := r.u16()
			if n == 0 {
				first = id
			}
		}
		tok.Kind = grammar.TokNSpeech
		tok.PartOfSpeech = fmt.Sprintf("vocab#%d", first)
		tok.Count = vocabCount

	default:
		tok.Kind = grammar.TokenKind(matchType)
	}
	return tok
}

// DictionaryRecord is one decoded entry from a dictionary block.
type DictionaryRecord struct {
	Word         string
	PartOfSpeech string
}

// DecodeDictionary decodes a dictionary block payload (blockDictionary),
// reversing the XOR 0xBD key obfuscation applied to each word on disk.
func DecodeDictionary(payload []byte) ([]DictionaryRecord, error) {
	r := newByteReader(payload)
	count := int(r.u32())
	out := make([]DictionaryRecord, 0, count)
	for i := 0; i < count; i++ {
		key := unobfuscateKey(r.blob())
		pos := r.str()
		out = append(out, DictionaryRecord{Word: string(key), PartOfSpeech: pos})
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("imgfmt: decode dictionary block: %w", err)
	}
	return out, nil
}

// DecodeStringComparator decodes a string-comparator-parameters block
// payload (blockStringComparator) into a configured strcmp.Comparator, per
// spec §6: "u16 trunc_len; u16 flags (bit0=case_sensitive); u16
// equiv_count; u16 total_value_chars", then per equivalence "u16 ref_ch;
// u8 value_ch_count; u32 uc_result_flags; u32 lc_result_flags; u16
// value_ch[value_ch_count]". Bit 1 of flags is a govm-local extension
// (width folding) beyond the bit the spec names.
func DecodeStringComparator(payload []byte) (*strcmp.Comparator, error) {
	r := newByteReader(payload)
	truncLen := int(r.u16())
	flags := r.u16()
	equivCount := int(r.u16())
	totalValueChars := int(r.u16())

	caseSensitive := flags&0x1 != 0
	foldWidth := flags&0x2 != 0

	opts := make([]strcmp.Option, 0, equivCount+3)
	if caseSensitive {
		opts = append(opts, strcmp.WithCaseSensitive())
	}
	if foldWidth {
		opts = append(opts, strcmp.WithWidthFold())
	}
	if truncLen > 0 {
		opts = append(opts, strcmp.WithTruncation(truncLen))
	}

	seenValueChars := 0
	for i := 0; i < equivCount; i++ {
		ref := rune(r.u16())
		valueChCount := int(r.u8())
		ucFlags := strcmp.ResultFlags(r.u32())
		lcFlags := strcmp.ResultFlags(r.u32())
		valueChars := make([]rune, valueChCount)
		for k := 0; k < valueChCount; k++ {
			valueChars[k] = rune(r.u16())
		}
		seenValueChars += valueChCount
		opts = append(opts, strcmp.WithEquivalence(ref, valueChars, ucFlags, lcFlags))
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("imgfmt: decode string comparator block: %w", err)
	}
	if seenValueChars != totalValueChars {
		return nil, fmt.Errorf("imgfmt: decode string comparator block: total_value_chars mismatch: header says %d, equivalences carried %d", totalValueChars, seenValueChars)
	}
	return strcmp.New(opts...), nil
}
