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

// Package savefmt encodes and decodes the saved-state format from spec §6:
// only non-root, modified, non-transient objects are serialized, each as
// its old id, metaclass name, and a metaclass-specific body. The spec
// leaves the exact byte layout up to the implementation ("format
// described, I/O not") and mandates only round-trip semantics, so records
// are framed with protobuf wire varints/length-delimited fields
// (protowire) rather than a bespoke binary layout.
package savefmt

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/encoding/protowire"
)

// Magic is the 4-byte signature every save file starts with.
var Magic = [4]byte{'T', '3', 'S', 'V'}

// Wire field numbers within one encoded Record.
const (
	fieldOldID         = protowire.Number(1)
	fieldMetaclassName = protowire.Number(2)
	fieldBody          = protowire.Number(3)
)

// ErrConfig and ErrData are this package's handles on spec §7's
// configuration-error and data-error categories.
var (
	ErrConfig = errors.New("savefmt: configuration error")
	ErrData   = errors.New("savefmt: data error")
)

// Record is one serialized object: the id it held in the VM that produced
// the save file (never the id it will be restored at — restore reallocates
// slots and resolves references through a fixup table), its metaclass
// name, and the metaclass-specific payload.
type Record struct {
	OldID         uint32
	MetaclassName string
	Body          []byte
}

// Header identifies the VM that produced a save file, for detecting
// cross-VM restores (a host may refuse to restore a save file produced by
// a different embedding, since its metaclass registry may differ).
type Header struct {
	Version    uint32
	ProducedBy uuid.UUID
}

// Write encodes header and records to w.
func Write(w io.Writer, header Header, records []Record) error {
	var body []byte
	for _, r := range records {
		body = appendRecord(body, r)
	}
	sum := blake2b.Sum256(body)

	var out []byte
	out = append(out, Magic[:]...)
	out = protowire.AppendVarint(out, uint64(header.Version))
	idBytes, err := header.ProducedBy.MarshalBinary()
	if err != nil {
		return fmt.Errorf("savefmt: marshal produced-by uuid: %w", err)
	}
	out = append(out, idBytes...)
	out = protowire.AppendVarint(out, uint64(len(records)))
	out = append(out, sum[:]...)
	out = append(out, body...)

	_, err = w.Write(out)
	return err
}

func appendRecord(dst []byte, r Record) []byte {
	dst = protowire.AppendTag(dst, fieldOldID, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(r.OldID))
	dst = protowire.AppendTag(dst, fieldMetaclassName, protowire.BytesType)
	dst = protowire.AppendBytes(dst, []byte(r.MetaclassName))
	dst = protowire.AppendTag(dst, fieldBody, protowire.BytesType)
	dst = protowire.AppendBytes(dst, r.Body)
	return dst
}

// Read decodes a save file's header and records from buf, verifying the
// checksum before returning anything (per spec §7: a malformed save file
// is rejected before any object is created).
func Read(buf []byte) (Header, []Record, error) {
	if len(buf) < 4 || [4]byte(buf[:4]) != Magic {
		return Header{}, nil, fmt.Errorf("savefmt: %w: bad magic", ErrConfig)
	}
	off := 4

	version, n := protowire.ConsumeVarint(buf[off:])
	if n < 0 {
		return Header{}, nil, fmt.Errorf("savefmt: %w: truncated version", ErrConfig)
	}
	off += n

	const uuidLen = 16
	if off+uuidLen > len(buf) {
		return Header{}, nil, fmt.Errorf("savefmt: %w: truncated produced-by uuid", ErrConfig)
	}
	var producedBy uuid.UUID
	if err := producedBy.UnmarshalBinary(buf[off : off+uuidLen]); err != nil {
		return Header{}, nil, fmt.Errorf("savefmt: %w: %v", ErrConfig, err)
	}
	off += uuidLen

	count, n := protowire.ConsumeVarint(buf[off:])
	if n < 0 {
		return Header{}, nil, fmt.Errorf("savefmt: %w: truncated record count", ErrConfig)
	}
	off += n

	const sumLen = blake2b.Size256
	if off+sumLen > len(buf) {
		return Header{}, nil, fmt.Errorf("savefmt: %w: truncated checksum", ErrConfig)
	}
	var wantSum [sumLen]byte
	copy(wantSum[:], buf[off:off+sumLen])
	off += sumLen

	body := buf[off:]
	gotSum := blake2b.Sum256(body)
	if gotSum != wantSum {
		return Header{}, nil, fmt.Errorf("savefmt: %w: checksum mismatch", ErrData)
	}

	records, err := consumeRecords(body, int(count))
	if err != nil {
		return Header{}, nil, err
	}

	header := Header{Version: uint32(version), ProducedBy: producedBy}
	return header, records, nil
}

func consumeRecords(body []byte, count int) ([]Record, error) {
	records := make([]Record, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		var r Record
		haveID, haveName, haveBody := false, false, false

		// Each record is exactly three consecutive tagged fields; a
		// well-formed writer (appendRecord) always emits them in id, name,
		// body order, so this loop does not need to tolerate field
		// reordering or repetition the way a general protobuf message
		// would.
		for !(haveID && haveName && haveBody) {
			if off >= len(body) {
				return nil, fmt.Errorf("savefmt: %w: truncated record %d", ErrData, i)
			}
			num, typ, n := protowire.ConsumeTag(body[off:])
			if n < 0 {
				return nil, fmt.Errorf("savefmt: %w: bad tag in record %d", ErrData, i)
			}
			off += n

			switch {
			case num == fieldOldID && typ == protowire.VarintType:
				v, n := protowire.ConsumeVarint(body[off:])
				if n < 0 {
					return nil, fmt.Errorf("savefmt: %w: bad old_id in record %d", ErrData, i)
				}
				off += n
				r.OldID = uint32(v)
				haveID = true

			case num == fieldMetaclassName && typ == protowire.BytesType:
				v, n := protowire.ConsumeBytes(body[off:])
				if n < 0 {
					return nil, fmt.Errorf("savefmt: %w: bad metaclass name in record %d", ErrData, i)
				}
				off += n
				r.MetaclassName = string(v)
				haveName = true

			case num == fieldBody && typ == protowire.BytesType:
				v, n := protowire.ConsumeBytes(body[off:])
				if n < 0 {
					return nil, fmt.Errorf("savefmt: %w: bad body in record %d", ErrData, i)
				}
				off += n
				r.Body = append([]byte(nil), v...)
				haveBody = true

			default:
				return nil, fmt.Errorf("savefmt: %w: unexpected field in record %d", ErrData, i)
			}
		}
		records = append(records, r)
	}
	if off != len(body) {
		return nil, fmt.Errorf("savefmt: %w: trailing bytes after last record", ErrData)
	}
	return records, nil
}
