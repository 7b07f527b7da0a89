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
	"context"
	"fmt"
	"io"

	"github.com/tads3/govm/internal/grammar"
	"github.com/tads3/govm/internal/strcmp"
)

// Image is the fully-decoded content of an image file, still in its
// type-agnostic form: the root package's loader installs Objects into an
// objtab.Table (resolving each MetaclassName through a metaclass.Registry),
// builds a grammar.Grammar from Productions and Dictionary, and configures
// the grammar's comparator from Comparator.
type Image struct {
	Objects     []ObjectRecord
	Productions []grammar.Production
	Dictionary  []DictionaryRecord
	Comparator  *strcmp.Comparator
}

// Load reads a complete image file from r: header, checksum-verified body,
// and every typed block within it. ReadBlocks splits the body into raw
// blocks in parallel; the typed blocks are then decoded one after another.
// None of them refer to each other by anything but name (a dictionary entry's
// part-of-speech string is resolved against grammar productions only when
// the grammar is later queried, not at load time).
func Load(ctx context.Context, r io.Reader) (*Image, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("imgfmt: read body: %w", err)
	}

	blocks, err := ReadBlocks(ctx, header, body)
	if err != nil {
		return nil, err
	}

	img := &Image{}
	for _, b := range blocks {
		switch b.Tag {
		case blockObjects:
			recs, err := DecodeObjects(b.Payload)
			if err != nil {
				return nil, err
			}
			img.Objects = append(img.Objects, recs...)

		case blockGrammar:
			prods, err := DecodeGrammar(b.Payload)
			if err != nil {
				return nil, err
			}
			img.Productions = append(img.Productions, prods...)

		case blockDictionary:
			recs, err := DecodeDictionary(b.Payload)
			if err != nil {
				return nil, err
			}
			img.Dictionary = append(img.Dictionary, recs...)

		case blockStringComparator:
			cmp, err := DecodeStringComparator(b.Payload)
			if err != nil {
				return nil, err
			}
			img.Comparator = cmp

		default:
			return nil, fmt.Errorf("imgfmt: unknown block tag %d", b.Tag)
		}
	}

	if img.Comparator == nil {
		img.Comparator = strcmp.New()
	}
	return img, nil
}
