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

// Package market reads the storage market actor: deal proposals and states,
// escrow and locked balance tables, and the collateral totals. Bundle
// version 9 appended the pending-allocation table, so the record length is
// version-dependent.
package market

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const balanceBitWidth = 5

// State accesses the storage market actor's state.
type State interface {
	Version() actors.Version
	NextDealID() (abi.DealID, error)
	GetProposal(ctx context.Context, id abi.DealID) (*DealProposal, bool, error)
	GetDealState(ctx context.Context, id abi.DealID) (*DealState, bool, error)
	ForEachProposal(ctx context.Context, cb func(id abi.DealID, p DealProposal) error) error
	EscrowBalance(ctx context.Context, addr address.Address) (abi.TokenAmount, error)
	LockedBalance(ctx context.Context, addr address.Address) (abi.TokenAmount, error)
	TotalLocked() (abi.TokenAmount, error)
	// PendingDealAllocation maps a deal to its datacap allocation; version 9
	// and up.
	PendingDealAllocation(ctx context.Context, id abi.DealID) (abi.AllocationID, bool, error)
	CheckInvariants(ctx context.Context) error
}

// Load decodes the market state rooted at root under bundle version v.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}
	data, err := store.Resolve(ctx, s, root)
	if err != nil {
		return nil, err
	}
	st := &state{version: v, store: s}
	if err := codec.Decode(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

type state struct {
	version actors.Version
	store   store.Store

	proposals        cid.Cid
	states           cid.Cid
	pendingProposals cid.Cid
	escrowTable      cid.Cid
	lockedTable      cid.Cid
	nextID           uint64
	dealOpsByEpoch   cid.Cid
	lastCron         int64

	totalClientLockedCollateral   big.Int
	totalProviderLockedCollateral big.Int
	totalClientStorageFee         big.Int

	// version 9 and up
	pendingDealAllocationIDs cid.Cid
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	if st.version == actors.V8 {
		r.ExpectArray(11)
	} else {
		r.ExpectArray(12)
	}
	st.proposals = r.ReadCid()
	st.states = r.ReadCid()
	st.pendingProposals = r.ReadCid()
	st.escrowTable = r.ReadCid()
	st.lockedTable = r.ReadCid()
	st.nextID = r.ReadUint64()
	st.dealOpsByEpoch = r.ReadCid()
	st.lastCron = r.ReadInt64()
	st.totalClientLockedCollateral.UnmarshalCBOR(r)
	st.totalProviderLockedCollateral.UnmarshalCBOR(r)
	st.totalClientStorageFee.UnmarshalCBOR(r)
	if st.version != actors.V8 {
		st.pendingDealAllocationIDs = r.ReadCid()
	}
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	if st.version == actors.V8 {
		w.WriteArray(11)
	} else {
		w.WriteArray(12)
	}
	w.WriteCid(st.proposals)
	w.WriteCid(st.states)
	w.WriteCid(st.pendingProposals)
	w.WriteCid(st.escrowTable)
	w.WriteCid(st.lockedTable)
	w.WriteUint64(st.nextID)
	w.WriteCid(st.dealOpsByEpoch)
	w.WriteInt64(st.lastCron)
	st.totalClientLockedCollateral.MarshalCBOR(w)
	st.totalProviderLockedCollateral.MarshalCBOR(w)
	st.totalClientStorageFee.MarshalCBOR(w)
	if st.version != actors.V8 {
		w.WriteCid(st.pendingDealAllocationIDs)
	}
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) NextDealID() (abi.DealID, error) {
	return abi.DealID(st.nextID), nil
}

func (st *state) GetProposal(ctx context.Context, id abi.DealID) (*DealProposal, bool, error) {
	arr, err := adt.AsArray(ctx, st.store, st.proposals)
	if err != nil {
		return nil, false, err
	}
	var p DealProposal
	found, err := arr.Get(ctx, abi.DealKey(id), &p)
	if err != nil || !found {
		return nil, found, err
	}
	return &p, true, nil
}

func (st *state) GetDealState(ctx context.Context, id abi.DealID) (*DealState, bool, error) {
	arr, err := adt.AsArray(ctx, st.store, st.states)
	if err != nil {
		return nil, false, err
	}
	var s DealState
	found, err := arr.Get(ctx, abi.DealKey(id), &s)
	if err != nil || !found {
		return nil, found, err
	}
	return &s, true, nil
}

func (st *state) ForEachProposal(ctx context.Context, cb func(id abi.DealID, p DealProposal) error) error {
	arr, err := adt.AsArray(ctx, st.store, st.proposals)
	if err != nil {
		return err
	}
	return arr.ForEach(ctx, func(i uint64, d *codec.Deferred) error {
		var p DealProposal
		if err := codec.Decode(d.Raw, &p); err != nil {
			return err
		}
		return cb(abi.DealID(i), p)
	})
}

func (st *state) EscrowBalance(ctx context.Context, addr address.Address) (abi.TokenAmount, error) {
	bt, err := adt.AsBalanceTable(ctx, st.store, st.escrowTable, balanceBitWidth)
	if err != nil {
		return big.Zero(), err
	}
	return bt.Get(ctx, addr)
}

func (st *state) LockedBalance(ctx context.Context, addr address.Address) (abi.TokenAmount, error) {
	bt, err := adt.AsBalanceTable(ctx, st.store, st.lockedTable, balanceBitWidth)
	if err != nil {
		return big.Zero(), err
	}
	return bt.Get(ctx, addr)
}

func (st *state) TotalLocked() (abi.TokenAmount, error) {
	total := big.Add(st.totalClientLockedCollateral, st.totalProviderLockedCollateral)
	return big.Add(total, st.totalClientStorageFee), nil
}

// allocationIDValue is the pending-allocation map's value shape: a bare
// unsigned integer.
type allocationIDValue struct {
	id uint64
}

func (v *allocationIDValue) UnmarshalCBOR(r *codec.Reader) {
	v.id = r.ReadUint64()
}

func (v *allocationIDValue) MarshalCBOR(w *codec.Writer) {
	w.WriteUint64(v.id)
}

func (st *state) PendingDealAllocation(ctx context.Context, id abi.DealID) (abi.AllocationID, bool, error) {
	if st.version == actors.V8 {
		return 0, false, fmt.Errorf("pending deal allocations were introduced in v9")
	}
	m, err := adt.AsMap(ctx, st.store, st.pendingDealAllocationIDs, balanceBitWidth)
	if err != nil {
		return 0, false, err
	}
	var v allocationIDValue
	found, err := m.Get(ctx, abi.UIntKey(uint64(id)), &v)
	if err != nil || !found {
		return 0, found, err
	}
	return abi.AllocationID(v.id), true, nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	for _, t := range []struct {
		name string
		v    big.Int
	}{
		{"client locked collateral", st.totalClientLockedCollateral},
		{"provider locked collateral", st.totalProviderLockedCollateral},
		{"client storage fee", st.totalClientStorageFee},
	} {
		if t.v.LessThan(big.Zero()) {
			return actors.Violation(actors.KindMarket, "negative total %s", t.name)
		}
	}

	// the locked table must sum to the three locked totals
	bt, err := adt.AsBalanceTable(ctx, st.store, st.lockedTable, balanceBitWidth)
	if err != nil {
		return err
	}
	lockedSum, err := bt.Total(ctx)
	if err != nil {
		return err
	}
	wantLocked, _ := st.TotalLocked()
	if !lockedSum.Equals(wantLocked) {
		return actors.Violation(actors.KindMarket, "locked table sums to %s, totals say %s", lockedSum, wantLocked)
	}

	// every deal ID must be below the allocation counter, with a sane
	// proposal
	return st.ForEachProposal(ctx, func(id abi.DealID, p DealProposal) error {
		if uint64(id) >= st.nextID {
			return actors.Violation(actors.KindMarket, "deal %d at or past counter %d", id, st.nextID)
		}
		if p.StartEpoch >= p.EndEpoch {
			return actors.Violation(actors.KindMarket, "deal %d starts at %d, ends at %d", id, p.StartEpoch, p.EndEpoch)
		}
		if p.StoragePricePerEpoch.LessThan(big.Zero()) {
			return actors.Violation(actors.KindMarket, "deal %d has negative price", id)
		}
		return nil
	})
}
