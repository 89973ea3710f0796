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

package hamt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
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

func mustGet(t *testing.T, n *Node, k string) (uint64, bool) {
	t.Helper()
	var out cborUint
	found, err := n.Find(context.Background(), []byte(k), &out)
	require.NoError(t, err)
	return uint64(out), found
}

func TestSetFindDelete(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	n := NewNode(s)

	for k, v := range map[string]uint64{"a": 1, "b": 2, "c": 3} {
		val := cborUint(v)
		require.NoError(t, n.Set(ctx, []byte(k), &val))
	}

	removed, err := n.Delete(ctx, []byte("b"))
	require.NoError(t, err)
	require.True(t, removed)

	_, found := mustGet(t, n, "b")
	require.False(t, found)
	v, found := mustGet(t, n, "a")
	require.True(t, found)
	require.Equal(t, uint64(1), v)
	v, found = mustGet(t, n, "c")
	require.True(t, found)
	require.Equal(t, uint64(3), v)

	// deleting an absent key reports false without error
	removed, err = n.Delete(ctx, []byte("b"))
	require.NoError(t, err)
	require.False(t, removed)
}

// The flushed root must not depend on the order keys were inserted or on
// whether deleted keys ever existed.
func TestRootIndependentOfHistory(t *testing.T) {
	ctx := context.Background()

	build := func(keys []string, deletes []string) string {
		s := store.NewMemoryStore()
		n := NewNode(s)
		for i, k := range keys {
			val := cborUint(i + 1)
			require.NoError(t, n.Set(ctx, []byte(k), &val))
		}
		for _, k := range deletes {
			_, err := n.Delete(ctx, []byte(k))
			require.NoError(t, err)
		}
		c, err := n.Flush(ctx)
		require.NoError(t, err)
		return c.String()
	}

	// a->1, c->3 reached three different ways
	direct := build([]string{"a", "x", "c"}, []string{"x"})
	reversed := build([]string{"c", "x", "a"}, []string{"x"})
	require.Equal(t, direct, reversed)
}

func TestFlushReload(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	n := NewNode(s, UseTreeBitWidth(5))

	want := make(map[string]uint64)
	for i := 0; i < 500; i++ {
		k := fmt.Sprintf("key-%03d", i)
		val := cborUint(i)
		require.NoError(t, n.Set(ctx, []byte(k), &val))
		want[k] = uint64(i)
	}

	root, err := n.Flush(ctx)
	require.NoError(t, err)

	loaded, err := LoadNode(ctx, s, root, UseTreeBitWidth(5))
	require.NoError(t, err)

	got := make(map[string]uint64)
	require.NoError(t, loaded.ForEach(ctx, func(k []byte, v *codec.Deferred) error {
		var val cborUint
		if err := codec.Decode(v.Raw, &val); err != nil {
			return err
		}
		got[string(k)] = uint64(val)
		return nil
	}))
	require.Equal(t, want, got)
}

func TestParallelForEach(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	n := NewNode(s)

	for i := 0; i < 300; i++ {
		val := cborUint(i)
		require.NoError(t, n.Set(ctx, []byte(fmt.Sprintf("k%d", i)), &val))
	}
	root, err := n.Flush(ctx)
	require.NoError(t, err)
	loaded, err := LoadNode(ctx, s, root)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]struct{})
	require.NoError(t, loaded.ParallelForEach(ctx, 4, func(k []byte, v *codec.Deferred) error {
		mu.Lock()
		seen[string(k)] = struct{}{}
		mu.Unlock()
		return nil
	}))
	require.Len(t, seen, 300)
}

// A failing callback must stop the traversal completely: no callback may run
// after ParallelForEach has returned.
func TestParallelForEachStopsOnError(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	n := NewNode(s)

	for i := 0; i < 300; i++ {
		val := cborUint(i)
		require.NoError(t, n.Set(ctx, []byte(fmt.Sprintf("k%d", i)), &val))
	}
	root, err := n.Flush(ctx)
	require.NoError(t, err)
	loaded, err := LoadNode(ctx, s, root)
	require.NoError(t, err)

	boom := errors.New("walk aborted")
	var returned int32
	var late int32
	err = loaded.ParallelForEach(ctx, 4, func(k []byte, v *codec.Deferred) error {
		if atomic.LoadInt32(&returned) == 1 {
			atomic.AddInt32(&late, 1)
		}
		return boom
	})
	atomic.StoreInt32(&returned, 1)
	require.ErrorIs(t, err, boom)
	require.Zero(t, atomic.LoadInt32(&late))
}

func TestFindMissingBlock(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	n := NewNode(s)
	for i := 0; i < 200; i++ {
		val := cborUint(i)
		require.NoError(t, n.Set(ctx, []byte(fmt.Sprintf("k%d", i)), &val))
	}
	root, err := n.Flush(ctx)
	require.NoError(t, err)

	// loading against an empty store surfaces MissingBlock on traversal
	empty := store.NewMemoryStore()
	_, err = LoadNode(ctx, empty, root)
	var missing *store.MissingBlockError
	require.ErrorAs(t, err, &missing)
}
