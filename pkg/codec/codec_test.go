// VulcanizeDB
// Copyright © 2023 Vulcanize

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package codec

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func testCid(t *testing.T, data string) cid.Cid {
	t.Helper()
	h, err := mh.Sum([]byte(data), mh.BLAKE2B_MIN+31, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, h)
}

type testRecord struct {
	U    uint64
	I    int64
	B    []byte
	S    string
	Flag bool
	C    cid.Cid
	Opt  *cid.Cid
	Big  *big.Int
}

func (tr *testRecord) MarshalCBOR(w *Writer) {
	w.WriteArray(8)
	w.WriteUint64(tr.U)
	w.WriteInt64(tr.I)
	w.WriteBytes(tr.B)
	w.WriteString(tr.S)
	w.WriteBool(tr.Flag)
	w.WriteCid(tr.C)
	w.WriteOptionalCid(tr.Opt)
	w.WriteBigInt(tr.Big)
}

func (tr *testRecord) UnmarshalCBOR(r *Reader) {
	r.ExpectArray(8)
	tr.U = r.ReadUint64()
	tr.I = r.ReadInt64()
	tr.B = r.ReadBytes(MaxByteFieldLength)
	tr.S = r.ReadString(MaxStringLength)
	tr.Flag = r.ReadBool()
	tr.C = r.ReadCid()
	tr.Opt = r.ReadOptionalCid()
	tr.Big = r.ReadBigInt()
}

func TestRoundTrip(t *testing.T) {
	opt := testCid(t, "optional")
	in := &testRecord{
		U:    23,
		I:    -42,
		B:    []byte{1, 2, 3},
		S:    "record",
		Flag: true,
		C:    testCid(t, "head"),
		Opt:  &opt,
		Big:  big.NewInt(-123456789),
	}

	data, err := Encode(in)
	require.NoError(t, err)

	var out testRecord
	require.NoError(t, Decode(data, &out))
	require.Equal(t, in, &out)

	// one representation per value
	again, err := Encode(&out)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestRoundTripNilOptional(t *testing.T) {
	in := &testRecord{C: testCid(t, "head"), Big: big.NewInt(0)}
	data, err := Encode(in)
	require.NoError(t, err)
	var out testRecord
	require.NoError(t, Decode(data, &out))
	require.Nil(t, out.Opt)
	require.Zero(t, out.Big.Sign())
}

// Every strict prefix of a valid encoding must fail cleanly, never yield a
// record decoded from partial input.
func TestTruncatedInput(t *testing.T) {
	opt := testCid(t, "optional")
	in := &testRecord{
		U: 1 << 40, I: -5, B: []byte("abcdef"), S: "str", Flag: true,
		C: testCid(t, "c"), Opt: &opt, Big: big.NewInt(99),
	}
	data, err := Encode(in)
	require.NoError(t, err)

	for n := 0; n < len(data); n++ {
		var out testRecord
		err := Decode(data[:n], &out)
		require.Error(t, err, "prefix of %d bytes decoded", n)
		require.True(t, IsDecodeError(err))
	}

	// a clean cut at an item boundary is still truncation
	var out testRecord
	err = Decode(data[:len(data)-1], &out)
	require.True(t, errors.Is(err, ErrTruncatedInput) || IsDecodeError(err))
}

func TestTrailingBytesRejected(t *testing.T) {
	in := &testRecord{C: testCid(t, "c"), Big: big.NewInt(0)}
	data, err := Encode(in)
	require.NoError(t, err)
	var out testRecord
	require.Error(t, Decode(append(data, 0x00), &out))
}

func TestNonMinimalHeadersRejected(t *testing.T) {
	for _, tc := range [][]byte{
		{0x18, 0x17},             // 23 in a uint8 header
		{0x19, 0x00, 0x17},       // 23 in a uint16 header
		{0x1a, 0, 0, 0x01, 0x00}, // 256 in a uint32 header
	} {
		r := NewReader(tc)
		r.ReadUint64()
		var inv *InvalidScalarError
		require.ErrorAs(t, r.Err(), &inv, "%x accepted", tc)
	}
}

func TestIndefiniteLengthRejected(t *testing.T) {
	r := NewReader([]byte{0x9f, 0x01, 0xff})
	r.ReadArray()
	require.Error(t, r.Err())
}

func TestUnknownTag(t *testing.T) {
	w := NewWriter()
	w.header(majTag, 43)
	w.WriteBytes([]byte{0, 1, 2})
	data, err := w.Bytes()
	require.NoError(t, err)

	r := NewReader(data)
	r.ReadCid()
	var unknown *UnknownTagError
	require.ErrorAs(t, r.Err(), &unknown)
	require.Equal(t, uint64(43), unknown.Tag)
}

func TestBigIntCanonicalForm(t *testing.T) {
	// empty byte string is zero
	r := NewReader([]byte{0x40})
	require.Zero(t, r.ReadBigInt().Sign())
	require.NoError(t, r.Err())

	// explicit zero magnitude is rejected
	r = NewReader([]byte{0x42, 0x00, 0x00})
	r.ReadBigInt()
	require.Error(t, r.Err())

	// unknown sign byte is rejected
	r = NewReader([]byte{0x42, 0x02, 0x01})
	r.ReadBigInt()
	require.Error(t, r.Err())
}

func TestStickyError(t *testing.T) {
	r := NewReader([]byte{0x01})
	require.Equal(t, uint64(1), r.ReadUint64())
	r.ReadUint64() // exhausted
	first := r.Err()
	require.Error(t, first)
	r.ReadBytes(10)
	r.ReadString(10)
	require.Equal(t, first, r.Err())
}

func TestReadRawCapturesWholeItem(t *testing.T) {
	in := &testRecord{C: testCid(t, "c"), Big: big.NewInt(7)}
	data, err := Encode(in)
	require.NoError(t, err)

	r := NewReader(data)
	var d Deferred
	d.UnmarshalCBOR(r)
	require.NoError(t, r.Err())
	require.Equal(t, data, d.Raw)
	require.Zero(t, r.Remaining())
}

func TestNestingDepthLimit(t *testing.T) {
	deep := make([]byte, maxNestingDepth+8)
	for i := range deep {
		deep[i] = 0x81 // single-element array
	}
	r := NewReader(deep)
	r.ReadRaw()
	require.Error(t, r.Err())
}

func TestInvalidUTF8Rejected(t *testing.T) {
	// 3-byte text string holding invalid UTF-8
	r := NewReader([]byte{0x63, 0xff, 0xfe, 0xfd})
	r.ReadString(16)
	require.True(t, IsDecodeError(r.Err()))
	var inv *InvalidScalarError
	require.ErrorAs(t, r.Err(), &inv)

	// the same bytes are fine as a byte string
	r = NewReader([]byte{0x43, 0xff, 0xfe, 0xfd})
	got := r.ReadBytes(16)
	require.NoError(t, r.Err())
	require.Equal(t, []byte{0xff, 0xfe, 0xfd}, got)
}
