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

// Package imgfmt decodes the fixed-width, little-endian binary image file
// format from spec §6: a header, a checksum, and a sequence of typed
// blocks (object data, grammar productions, dictionary entries, string
// comparator parameters).
package imgfmt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

// Magic is the 4-byte signature every image file starts with.
var Magic = [4]byte{'T', '3', 'I', 'F'}

// blockTag identifies a block's payload kind.
type blockTag uint32

const (
	blockObjects blockTag = iota + 1
	blockGrammar
	blockDictionary
	blockStringComparator
)

// dictKeyXOR is the byte every dictionary entry's key bytes are XORed
// with on disk, per spec §6 ("XOR 0xBD obfuscated keys") — an
// anti-casual-editing measure inherited from the original format, not a
// security boundary.
const dictKeyXOR = 0xBD

// Header is the fixed-width file header.
type Header struct {
	Magic      [4]byte
	Version    uint32
	BlockCount uint32
	Checksum   [blake2b.Size256]byte
}

// Block is one decoded, still-opaque block: its tag and raw payload. The
// caller hands Payload to the decoder matching Tag.
type Block struct {
	Tag     blockTag
	Payload []byte
}

// ErrBadMagic, ErrChecksumMismatch, and ErrTruncated are the configuration
// errors (spec §7: rejected before any object is created) this package can
// report.
var (
	ErrBadMagic         = errors.New("imgfmt: bad magic")
	ErrChecksumMismatch = errors.New("imgfmt: checksum mismatch")
	ErrTruncated        = errors.New("imgfmt: truncated block")
)

// ReadHeader reads and validates the fixed-width header from r, without
// yet validating the checksum (which requires the whole body).
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.Magic); err != nil {
		return Header{}, fmt.Errorf("imgfmt: read magic: %w", err)
	}
	if h.Magic != Magic {
		return Header{}, ErrBadMagic
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return Header{}, fmt.Errorf("imgfmt: read version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.BlockCount); err != nil {
		return Header{}, fmt.Errorf("imgfmt: read block count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Checksum); err != nil {
		return Header{}, fmt.Errorf("imgfmt: read checksum: %w", err)
	}
	return h, nil
}

// ReadBlocks reads every block named by header.BlockCount from r, verifies
// the whole body against header.Checksum before returning anything (a
// malformed body must be rejected before any object is created, per spec
// §7), and decodes the independent blocks concurrently via errgroup since
// parsing is read-only and blocks don't reference each other structurally
// (dictionary entries reference grammar productions only by name, resolved
// after all blocks are parsed).
func ReadBlocks(ctx context.Context, header Header, body []byte) ([]Block, error) {
	sum := blake2b.Sum256(body)
	if sum != header.Checksum {
		return nil, ErrChecksumMismatch
	}

	offsets, err := splitBlocks(body, int(header.BlockCount))
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, len(offsets))
	g, _ := errgroup.WithContext(ctx)
	for i, raw := range offsets {
		i, raw := i, raw
		g.Go(func() error {
			tag := blockTag(binary.LittleEndian.Uint32(raw[:4]))
			blocks[i] = Block{Tag: tag, Payload: raw[4:]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// splitBlocks walks body, which is a concatenation of
// [uint32 tag][uint32 length][length bytes of payload] records, and
// returns each record's [tag-prefixed] slice (tag kept in the slice so
// ReadBlocks's goroutines don't need a second pass to find it).
func splitBlocks(body []byte, count int) ([][]byte, error) {
	out := make([][]byte, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		if off+8 > len(body) {
			return nil, ErrTruncated
		}
		length := int(binary.LittleEndian.Uint32(body[off+4 : off+8]))
		end := off + 8 + length
		if end > len(body) {
			return nil, ErrTruncated
		}
		// Record layout is [tag][length][payload]; present it to the
		// decoder as [tag][payload] by skipping the length field.
		rec := make([]byte, 4+length)
		copy(rec[:4], body[off:off+4])
		copy(rec[4:], body[off+8:end])
		out = append(out, rec)
		off = end
	}
	return out, nil
}

// unobfuscateKey reverses the XOR 0xBD applied to dictionary entry keys on
// disk.
func unobfuscateKey(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ dictKeyXOR
	}
	return out
}
