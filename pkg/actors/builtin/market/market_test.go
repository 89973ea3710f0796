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

package market

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

type marketFixture struct {
	t        *testing.T
	ctx      context.Context
	s        *store.MemoryStore
	v        actors.Version
	st       state
	client   address.Address
	provider address.Address
}

func (f *marketFixture) put(v codec.Marshaler) cid.Cid {
	f.t.Helper()
	data, err := codec.Encode(v)
	require.NoError(f.t, err)
	c, err := f.s.Put(f.ctx, store.CodecDagCBOR, data)
	require.NoError(f.t, err)
	return c
}

func (f *marketFixture) mapRoot(m *adt.Map) cid.Cid {
	f.t.Helper()
	c, err := m.Root(f.ctx)
	require.NoError(f.t, err)
	return c
}

func (f *marketFixture) arrRoot(a *adt.Array) cid.Cid {
	f.t.Helper()
	c, err := a.Root(f.ctx)
	require.NoError(f.t, err)
	return c
}

func newMarketFixture(t *testing.T, ctx context.Context, v actors.Version) *marketFixture {
	f := &marketFixture{t: t, ctx: ctx, s: store.NewMemoryStore(), v: v}

	var err error
	f.client, err = address.NewIDAddress(101)
	require.NoError(t, err)
	f.provider, err = address.NewIDAddress(102)
	require.NoError(t, err)

	pieceCid, err := store.AddressOf(store.CodecRaw, []byte("piece"))
	require.NoError(t, err)

	proposals := adt.MakeEmptyArray(f.s, 6)
	prop := &DealProposal{
		PieceCID:             pieceCid,
		PieceSize:            128,
		VerifiedDeal:         true,
		Client:               f.client,
		Provider:             f.provider,
		Label:                NewLabelFromString("deal zero"),
		StartEpoch:           50,
		EndEpoch:             5000,
		StoragePricePerEpoch: big.NewInt(2),
		ProviderCollateral:   big.NewInt(100),
		ClientCollateral:     big.NewInt(10),
	}
	require.NoError(t, proposals.Set(ctx, 0, prop))

	states := adt.MakeEmptyArray(f.s, 6)
	require.NoError(t, states.Set(ctx, 0, &DealState{
		SectorStartEpoch: 60,
		LastUpdatedEpoch: -1,
		SlashEpoch:       -1,
	}))

	escrow := adt.MakeEmptyMap(f.s, balanceBitWidth)
	escrowClient := big.NewInt(500)
	escrowProvider := big.NewInt(800)
	require.NoError(t, escrow.Put(ctx, abi.AddrKey(f.client), &escrowClient))
	require.NoError(t, escrow.Put(ctx, abi.AddrKey(f.provider), &escrowProvider))

	locked := adt.MakeEmptyMap(f.s, balanceBitWidth)
	lockedClient := big.NewInt(30)
	lockedProvider := big.NewInt(100)
	require.NoError(t, locked.Put(ctx, abi.AddrKey(f.client), &lockedClient))
	require.NoError(t, locked.Put(ctx, abi.AddrKey(f.provider), &lockedProvider))

	pendingAllocs := adt.MakeEmptyMap(f.s, balanceBitWidth)
	require.NoError(t, pendingAllocs.Put(ctx, abi.UIntKey(0), &allocationIDValue{id: 77}))

	f.st = state{
		version:          v,
		store:            f.s,
		proposals:        f.arrRoot(proposals),
		states:           f.arrRoot(states),
		pendingProposals: f.mapRoot(adt.MakeEmptyMap(f.s, balanceBitWidth)),
		escrowTable:      f.mapRoot(escrow),
		lockedTable:      f.mapRoot(locked),
		nextID:           1,
		dealOpsByEpoch:   f.mapRoot(adt.MakeEmptyMap(f.s, balanceBitWidth)),
		lastCron:         -1,

		// the locked table above sums to 130
		totalClientLockedCollateral:   big.NewInt(10),
		totalProviderLockedCollateral: big.NewInt(100),
		totalClientStorageFee:         big.NewInt(20),
	}
	if v != actors.V8 {
		f.st.pendingDealAllocationIDs = f.mapRoot(pendingAllocs)
	}
	return f
}

func (f *marketFixture) load() State {
	st, err := Load(f.ctx, f.s, f.v, f.put(&f.st))
	require.NoError(f.t, err)
	return st
}

func TestMarketAccessors(t *testing.T) {
	ctx := context.Background()
	f := newMarketFixture(t, ctx, actors.V11)
	st := f.load()

	next, err := st.NextDealID()
	require.NoError(t, err)
	require.Equal(t, abi.DealID(1), next)

	p, found, err := st.GetProposal(ctx, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, f.client, p.Client)
	label, isString := p.Label.String()
	require.True(t, isString)
	require.Equal(t, "deal zero", label)

	_, found, err = st.GetProposal(ctx, 1)
	require.NoError(t, err)
	require.False(t, found)

	ds, found, err := st.GetDealState(ctx, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, abi.ChainEpoch(60), ds.SectorStartEpoch)

	bal, err := st.EscrowBalance(ctx, f.provider)
	require.NoError(t, err)
	require.Equal(t, "800", bal.String())
	bal, err = st.LockedBalance(ctx, f.client)
	require.NoError(t, err)
	require.Equal(t, "30", bal.String())

	// absent parties have zero balance, not an error
	stranger, err := address.NewIDAddress(999)
	require.NoError(t, err)
	bal, err = st.EscrowBalance(ctx, stranger)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	total, err := st.TotalLocked()
	require.NoError(t, err)
	require.Equal(t, "130", total.String())

	alloc, found, err := st.PendingDealAllocation(ctx, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, abi.AllocationID(77), alloc)
}

func TestMarketSchemaByVersion(t *testing.T) {
	ctx := context.Background()

	// version 8 carries no pending-allocation table
	f := newMarketFixture(t, ctx, actors.V8)
	st := f.load()
	_, _, err := st.PendingDealAllocation(ctx, 0)
	require.Error(t, err)

	// an 11-field record is not a valid v9 state
	data, err := codec.Encode(&f.st)
	require.NoError(t, err)
	bad := &state{version: actors.V9, store: f.s}
	require.Error(t, codec.Decode(data, bad))
}

func TestMarketCheckInvariants(t *testing.T) {
	ctx := context.Background()

	st := newMarketFixture(t, ctx, actors.V11).load()
	require.NoError(t, st.CheckInvariants(ctx))

	asViolation := func(err error) {
		t.Helper()
		var v *actors.InvariantViolationError
		require.ErrorAs(t, err, &v)
		require.Equal(t, actors.KindMarket, v.Kind)
	}

	t.Run("negative total", func(t *testing.T) {
		f := newMarketFixture(t, ctx, actors.V11)
		f.st.totalClientStorageFee = big.NewInt(-1)
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("locked totals out of sync with table", func(t *testing.T) {
		f := newMarketFixture(t, ctx, actors.V11)
		f.st.totalClientStorageFee = big.NewInt(21)
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("deal past allocation counter", func(t *testing.T) {
		f := newMarketFixture(t, ctx, actors.V11)
		f.st.nextID = 0
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("deal ends before it starts", func(t *testing.T) {
		f := newMarketFixture(t, ctx, actors.V11)
		proposals, err := adt.AsArray(ctx, f.s, f.st.proposals)
		require.NoError(t, err)
		var p DealProposal
		found, err := proposals.Get(ctx, 0, &p)
		require.NoError(t, err)
		require.True(t, found)
		p.StartEpoch, p.EndEpoch = p.EndEpoch, p.StartEpoch
		require.NoError(t, proposals.Set(ctx, 0, &p))
		f.st.proposals, err = proposals.Root(ctx)
		require.NoError(t, err)
		asViolation(f.load().CheckInvariants(ctx))
	})
}
