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

package state_test

import (
	"context"
	"sync"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/state"
	"github.com/cerc-io/fil-state-service/pkg/store"
	"github.com/cerc-io/fil-state-service/pkg/testhelpers"
)

func buildTree(t *testing.T, ctx context.Context, v actors.Version) (*testhelpers.TreeBuilder, *state.Tree) {
	t.Helper()
	b, err := testhelpers.NewTreeBuilder(ctx, v)
	require.NoError(t, err)

	w := codec.NewWriter()
	w.WriteArray(1)
	addr, err := address.NewSecp256k1Address([]byte("test account pubkey"))
	require.NoError(t, err)
	abi.WriteAddr(w, addr)
	head, err := b.PutRaw(ctx, w)
	require.NoError(t, err)
	require.NoError(t, b.SetActor(ctx, 100, actors.KindAccount, head, abi.NewTokenAmount(5000)))

	root, err := b.Flush(ctx)
	require.NoError(t, err)
	tree, err := state.LoadTree(ctx, b.Store(), root)
	require.NoError(t, err)
	return b, tree
}

func TestLoadTree(t *testing.T) {
	ctx := context.Background()
	_, tree := buildTree(t, ctx, actors.V11)

	require.Equal(t, state.TreeVersion5, tree.Version())
	require.True(t, tree.Root().Actors.Defined())

	act, found, err := tree.GetActor(ctx, testhelpers.IDAddress(100))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, testhelpers.CodeCid(actors.V11, actors.KindAccount), act.Code)
	require.Equal(t, "5000", act.Balance.String())

	_, found, err = tree.GetActor(ctx, testhelpers.IDAddress(999))
	require.NoError(t, err)
	require.False(t, found)
}

func TestTreeVersionTracksBundle(t *testing.T) {
	ctx := context.Background()
	_, tree := buildTree(t, ctx, actors.V9)
	require.Equal(t, state.TreeVersion4, tree.Version())
}

func TestForEach(t *testing.T) {
	ctx := context.Background()
	_, tree := buildTree(t, ctx, actors.V11)

	seen := make(map[address.Address]*actors.Actor)
	require.NoError(t, tree.ForEach(ctx, func(addr address.Address, act *actors.Actor) error {
		seen[addr] = act
		return nil
	}))
	// system actor plus the installed account
	require.Len(t, seen, 2)
	require.Contains(t, seen, testhelpers.IDAddress(0))
	require.Contains(t, seen, testhelpers.IDAddress(100))

	var mu sync.Mutex
	count := 0
	require.NoError(t, tree.ParallelForEach(ctx, 4, func(addr address.Address, act *actors.Actor) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))
	require.Equal(t, 2, count)
}

func TestLoadTreeRejectsUnknownLayout(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	w := codec.NewWriter()
	w.WriteArray(3)
	w.WriteUint64(99)
	c, err := store.AddressOf(store.CodecDagCBOR, []byte("x"))
	require.NoError(t, err)
	w.WriteCid(c)
	w.WriteCid(c)
	data, err := w.Bytes()
	require.NoError(t, err)
	root, err := s.Put(ctx, store.CodecDagCBOR, data)
	require.NoError(t, err)

	_, err = state.LoadTree(ctx, s, root)
	require.Error(t, err)
}
