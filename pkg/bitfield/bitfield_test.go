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

package bitfield

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/codec"
)

func roundTrip(t *testing.T, bf BitField) BitField {
	t.Helper()
	data, err := codec.Encode(bf)
	require.NoError(t, err)
	var out BitField
	require.NoError(t, codec.Decode(data, &out))
	return out
}

func TestSetMembership(t *testing.T) {
	members := []uint64{0, 1, 5, 6, 7, 100, 1 << 30}
	bf := NewFromSet(members)

	require.Equal(t, uint64(len(members)), bf.Count())
	require.False(t, bf.IsEmpty())
	for _, m := range members {
		require.True(t, bf.IsSet(m), "missing %d", m)
	}
	require.False(t, bf.IsSet(2))
	require.False(t, bf.IsSet(101))

	first, err := bf.First()
	require.NoError(t, err)
	require.Equal(t, uint64(0), first)
	last, err := bf.Last()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<30), last)

	all, err := bf.All(1 << 20)
	require.NoError(t, err)
	require.Equal(t, members, all)
}

func TestSetUnset(t *testing.T) {
	bf := New()
	require.True(t, bf.IsEmpty())

	bf.Set(3)
	bf.Set(4)
	bf.Set(4)
	require.Equal(t, uint64(2), bf.Count())

	bf.Unset(3)
	require.False(t, bf.IsSet(3))
	require.True(t, bf.IsSet(4))
}

func TestEncodingRoundTrip(t *testing.T) {
	for _, members := range [][]uint64{
		nil,
		{0},
		{5},
		{0, 1, 2, 3},
		{2, 4, 6, 8, 1000000},
	} {
		in := NewFromSet(members)
		out := roundTrip(t, in)
		require.Equal(t, in.Runs(), out.Runs())
	}
}

// Encoding is a pure function of the set, not of how it was built.
func TestEncodingCanonical(t *testing.T) {
	a := NewFromSet([]uint64{1, 2, 3, 10})

	b := New()
	for _, i := range []uint64{10, 3, 7, 1, 2} {
		b.Set(i)
	}
	b.Unset(7)

	da, err := codec.Encode(a)
	require.NoError(t, err)
	db, err := codec.Encode(b)
	require.NoError(t, err)
	require.Equal(t, da, db)
}

func TestSetOperations(t *testing.T) {
	a := NewFromSet([]uint64{1, 2, 3, 4})
	b := NewFromSet([]uint64{3, 4, 5, 6})

	merged, err := Merge(a, b).All(100)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, merged)

	both, err := Intersect(a, b).All(100)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 4}, both)

	only, err := Subtract(a, b).All(100)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, only)

	require.True(t, ContainsAll(a, NewFromSet([]uint64{2, 4})))
	require.False(t, ContainsAll(a, NewFromSet([]uint64{2, 5})))
	require.True(t, ContainsAny(a, b))
	require.False(t, ContainsAny(a, NewFromSet([]uint64{9})))
}

func TestAllRespectsLimit(t *testing.T) {
	bf := NewFromSet([]uint64{1, 2, 3, 4, 5})
	_, err := bf.All(3)
	require.Error(t, err)
}

func TestDecodeRejectsOversized(t *testing.T) {
	w := codec.NewWriter()
	w.WriteBytes(make([]byte, MaxEncodedSize+1))
	data, err := w.Bytes()
	require.NoError(t, err)

	var bf BitField
	require.Error(t, codec.Decode(data, &bf))
}
