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
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/tads3/govm/internal/value"
)

// putU32/putU16/putStr/putBlob build little-endian block-payload fields
// matching what reader.go parses, for constructing test fixtures by hand.

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putU8(buf *bytes.Buffer, v uint8) { buf.WriteByte(v) }

func putStr(buf *bytes.Buffer, s string) {
	putU16(buf, uint16(len(s)))
	buf.WriteString(s)
}

func putBlob(buf *bytes.Buffer, b []byte) {
	putU32(buf, uint32(len(b)))
	buf.Write(b)
}

// buildBlock wraps payload in the [tag][length][payload] record format
// splitBlocks expects.
func buildBlock(tag blockTag, payload []byte) []byte {
	var rec bytes.Buffer
	putU32(&rec, uint32(tag))
	putU32(&rec, uint32(len(payload)))
	rec.Write(payload)
	return rec.Bytes()
}

func buildImage(t *testing.T, blocks ...[]byte) []byte {
	t.Helper()
	var body bytes.Buffer
	for _, b := range blocks {
		body.Write(b)
	}
	sum := blake2b.Sum256(body.Bytes())

	var out bytes.Buffer
	out.Write(Magic[:])
	putU32(&out, 1)
	putU32(&out, uint32(len(blocks)))
	out.Write(sum[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func objectsBlockPayload(recs ...ObjectRecord) []byte {
	var buf bytes.Buffer
	putU32(&buf, uint32(len(recs)))
	for _, r := range recs {
		putU32(&buf, r.ID)
		putStr(&buf, r.MetaclassName)
		putBlob(&buf, r.Data)
	}
	return buf.Bytes()
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	var bad bytes.Buffer
	bad.WriteString("XXXX")
	putU32(&bad, 1)
	putU32(&bad, 0)
	bad.Write(make([]byte, blake2b.Size256))

	_, err := ReadHeader(bytes.NewReader(bad.Bytes()))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestLoadRoundTripsObjectsBlock(t *testing.T) {
	recs := []ObjectRecord{
		{ID: 1, MetaclassName: "string/030000", Data: []byte("hello")},
		{ID: 2, MetaclassName: "list/030000", Data: []byte{0, 0, 0, 1}},
	}
	raw := buildImage(t, buildBlock(blockObjects, objectsBlockPayload(recs...)))

	img, err := Load(context.Background(), bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, img.Objects, 2)
	assert.Equal(t, recs[0], img.Objects[0])
	assert.Equal(t, recs[1], img.Objects[1])
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	raw := buildImage(t, buildBlock(blockObjects, objectsBlockPayload()))
	raw[len(raw)-1] ^= 0xFF // corrupt a body byte after the checksum was computed
	_, err := Load(context.Background(), bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodeGrammarBlock(t *testing.T) {
	var payload bytes.Buffer
	putU32(&payload, 1) // one production
	putStr(&payload, "greeting")
	putU16(&payload, 1)  // one alternative
	putU16(&payload, 5)  // score
	putU16(&payload, 0)  // badness
	putU32(&payload, 42) // processor_object_id
	putU16(&payload, 1)  // one token
	putU16(&payload, 7)  // property_association
	putU8(&payload, 3)   // match_type 3 = Literal
	putStr(&payload, "hello")

	prods, err := DecodeGrammar(payload.Bytes())
	require.NoError(t, err)
	require.Len(t, prods, 1)
	assert.Equal(t, "greeting", prods[0].Name)
	require.Len(t, prods[0].Alternatives, 1)
	alt := prods[0].Alternatives[0]
	assert.Equal(t, 5, alt.Score)
	assert.Equal(t, 0, alt.Badness)
	assert.Equal(t, value.ObjID(42), alt.ProcessorObjectID)
	require.Len(t, alt.Tokens, 1)
	assert.Equal(t, "hello", alt.Tokens[0].Literal)
	assert.Equal(t, value.PropID(7), alt.Tokens[0].Prop)
}

func TestDecodeDictionaryBlockUnobfuscatesKeys(t *testing.T) {
	var payload bytes.Buffer
	putU32(&payload, 1)
	word := []byte("sword")
	obfuscated := make([]byte, len(word))
	for i, c := range word {
		obfuscated[i] = c ^ dictKeyXOR
	}
	putBlob(&payload, obfuscated)
	putStr(&payload, "noun")

	recs, err := DecodeDictionary(payload.Bytes())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sword", recs[0].Word)
	assert.Equal(t, "noun", recs[0].PartOfSpeech)
}

func TestDecodeStringComparatorBlock(t *testing.T) {
	var payload bytes.Buffer
	putU16(&payload, 0) // no truncation
	putU16(&payload, 0) // case-insensitive, no width fold
	putU16(&payload, 1) // one equivalence rule
	putU16(&payload, 3) // total_value_chars: "and"
	putU16(&payload, uint16('&'))
	putU8(&payload, 3) // value_ch_count
	putU32(&payload, 0x10)
	putU32(&payload, 0x20)
	putU16(&payload, uint16('a'))
	putU16(&payload, uint16('n'))
	putU16(&payload, uint16('d'))

	cmp, err := DecodeStringComparator(payload.Bytes())
	require.NoError(t, err)
	flags, ok := cmp.Match("rockandroll", "rock&roll")
	require.True(t, ok)
	assert.NotZero(t, flags&0x20)
}

func TestLoadTruncatedBodyFails(t *testing.T) {
	raw := buildImage(t, buildBlock(blockObjects, objectsBlockPayload()))
	truncated := raw[:len(raw)-1]
	_, err := Load(context.Background(), bytes.NewReader(truncated))
	require.Error(t, err)
}
