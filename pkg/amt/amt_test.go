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

package amt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

type cborUint uint64

func (c *cborUint) MarshalCBOR(w *codec.Writer) {
	w.WriteUint64(uint64(*c))
}

func (c *cborUint) UnmarshalCBOR(r *codec.Reader) {
	*c = cborUint(r.ReadUint64())
}

// Five pushes into a four-slot node must grow the tree by exactly one level.
func TestPushGrowsOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := NewAMT(s, UseTreeBitWidth(2))

	for _, v := range []uint64{10, 20, 30, 40} {
		val := cborUint(v)
		require.NoError(t, r.Push(ctx, &val))
	}
	require.Equal(t, uint64(0), r.height)

	val := cborUint(50)
	require.NoError(t, r.Push(ctx, &val))
	require.Equal(t, uint64(1), r.height)
	require.Equal(t, uint64(5), r.Count())

	var out cborUint
	found, err := r.Get(ctx, 4, &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(50), uint64(out))

	found, err = r.Get(ctx, 5, &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestFlushReload(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := NewAMT(s, UseTreeBitWidth(2))

	want := map[uint64]uint64{0: 10, 3: 13, 17: 27, 100: 110}
	for i, v := range want {
		val := cborUint(v)
		require.NoError(t, r.Set(ctx, i, &val))
	}
	root, err := r.Flush(ctx)
	require.NoError(t, err)

	loaded, err := LoadAMT(ctx, s, root)
	require.NoError(t, err)
	require.Equal(t, uint64(len(want)), loaded.Count())
	require.Equal(t, uint(2), loaded.bitWidth)

	got := make(map[uint64]uint64)
	require.NoError(t, loaded.ForEach(ctx, func(i uint64, v *codec.Deferred) error {
		var val cborUint
		if err := codec.Decode(v.Raw, &val); err != nil {
			return err
		}
		got[i] = uint64(val)
		return nil
	}))
	require.Equal(t, want, got)

	// unset indexes between set ones stay absent
	var out cborUint
	found, err := loaded.Get(ctx, 4, &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestForEachOrdered(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := NewAMT(s)

	// insert out of order
	for _, i := range []uint64{9, 2, 40, 0, 25} {
		val := cborUint(i)
		require.NoError(t, r.Set(ctx, i, &val))
	}

	var visited []uint64
	require.NoError(t, r.ForEach(ctx, func(i uint64, v *codec.Deferred) error {
		visited = append(visited, i)
		return nil
	}))
	require.Equal(t, []uint64{0, 2, 9, 25, 40}, visited)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := NewAMT(s)

	for i := uint64(0); i < 20; i++ {
		val := cborUint(i)
		require.NoError(t, r.Set(ctx, i, &val))
	}
	removed, err := r.Delete(ctx, 7)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, uint64(19), r.Count())

	removed, err = r.Delete(ctx, 7)
	require.NoError(t, err)
	require.False(t, removed)

	var out cborUint
	found, err := r.Get(ctx, 7, &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRootDeterministic(t *testing.T) {
	ctx := context.Background()

	build := func(order []uint64) string {
		s := store.NewMemoryStore()
		r := NewAMT(s, UseTreeBitWidth(3))
		for _, i := range order {
			val := cborUint(i * 2)
			require.NoError(t, r.Set(ctx, i, &val))
		}
		root, err := r.Flush(ctx)
		require.NoError(t, err)
		return root.String()
	}

	require.Equal(t,
		build([]uint64{1, 5, 9, 64, 3}),
		build([]uint64{64, 3, 9, 1, 5}),
	)
}

func TestLoadRejectsCorruptRoot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// bit width outside the allowed range
	w := codec.NewWriter()
	w.WriteArray(4)
	w.WriteUint64(64)
	w.WriteUint64(0)
	w.WriteUint64(0)
	w.WriteArray(3)
	w.WriteBytes([]byte{0})
	w.WriteArray(0)
	w.WriteArray(0)
	data, err := w.Bytes()
	require.NoError(t, err)
	c, err := s.Put(ctx, store.CodecDagCBOR, data)
	require.NoError(t, err)

	_, err = LoadAMT(ctx, s, c)
	var corrupt *CorruptNodeError
	require.ErrorAs(t, err, &corrupt)
}
