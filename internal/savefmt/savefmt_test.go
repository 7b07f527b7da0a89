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

package savefmt

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tads3/govm/internal/value"
)

func TestWriteReadRoundTrip(t *testing.T) {
	header := Header{Version: 1, ProducedBy: uuid.New()}
	records := []Record{
		{OldID: 5, MetaclassName: "string/030000", Body: []byte("hello")},
		{OldID: 7, MetaclassName: "list/030000", Body: []byte{1, 2, 3}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, header, records))

	gotHeader, gotRecords, err := Read(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, header, gotHeader)
	assert.Equal(t, records, gotRecords)
}

func TestReadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{ProducedBy: uuid.New()}, nil))
	raw := buf.Bytes()
	raw[0] = 'X'

	_, _, err := Read(raw)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestReadRejectsChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	records := []Record{{OldID: 1, MetaclassName: "x", Body: []byte("y")}}
	require.NoError(t, Write(&buf, Header{ProducedBy: uuid.New()}, records))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, _, err := Read(raw)
	assert.ErrorIs(t, err, ErrData)
}

func TestReadEmptyRecordsRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{Version: 3, ProducedBy: uuid.New()}, nil))

	_, records, err := Read(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFixupResolvesRecordedIDs(t *testing.T) {
	f := NewFixup(2)
	f.Set(5, value.ObjID(100))
	f.Set(7, value.ObjID(101))

	got, ok := f.Resolve(5)
	require.True(t, ok)
	assert.Equal(t, value.ObjID(100), got)

	_, ok = f.Resolve(999)
	assert.False(t, ok)
}
