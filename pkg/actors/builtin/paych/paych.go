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

// Package paych reads payment channel actors: the two parties, the pending
// payout and the per-lane redemption states.
package paych

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// LaneState is the redemption state of one lane.
type LaneState struct {
	Redeemed abi.TokenAmount
	Nonce    uint64
}

func (ls *LaneState) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	ls.Redeemed.UnmarshalCBOR(r)
	ls.Nonce = r.ReadUint64()
}

func (ls *LaneState) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	ls.Redeemed.MarshalCBOR(w)
	w.WriteUint64(ls.Nonce)
}

// State accesses one payment channel actor's state.
type State interface {
	Version() actors.Version
	From() (address.Address, error)
	To() (address.Address, error)
	ToSend() (abi.TokenAmount, error)
	SettlingAt() (abi.ChainEpoch, error)
	MinSettleHeight() (abi.ChainEpoch, error)
	LaneCount(ctx context.Context) (uint64, error)
	ForEachLaneState(ctx context.Context, cb func(idx uint64, ls LaneState) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the payment channel state rooted at root under bundle
// version v.
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

	from            address.Address
	to              address.Address
	toSend          big.Int
	settlingAt      int64
	minSettleHeight int64
	laneStates      cid.Cid
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(6)
	st.from = abi.ReadAddr(r)
	st.to = abi.ReadAddr(r)
	st.toSend.UnmarshalCBOR(r)
	st.settlingAt = r.ReadInt64()
	st.minSettleHeight = r.ReadInt64()
	st.laneStates = r.ReadCid()
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(6)
	abi.WriteAddr(w, st.from)
	abi.WriteAddr(w, st.to)
	st.toSend.MarshalCBOR(w)
	w.WriteInt64(st.settlingAt)
	w.WriteInt64(st.minSettleHeight)
	w.WriteCid(st.laneStates)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) From() (address.Address, error) {
	return st.from, nil
}

func (st *state) To() (address.Address, error) {
	return st.to, nil
}

func (st *state) ToSend() (abi.TokenAmount, error) {
	return st.toSend, nil
}

func (st *state) SettlingAt() (abi.ChainEpoch, error) {
	return abi.ChainEpoch(st.settlingAt), nil
}

func (st *state) MinSettleHeight() (abi.ChainEpoch, error) {
	return abi.ChainEpoch(st.minSettleHeight), nil
}

func (st *state) lanes(ctx context.Context) (*adt.Array, error) {
	return adt.AsArray(ctx, st.store, st.laneStates)
}

func (st *state) LaneCount(ctx context.Context) (uint64, error) {
	arr, err := st.lanes(ctx)
	if err != nil {
		return 0, err
	}
	return arr.Length(), nil
}

func (st *state) ForEachLaneState(ctx context.Context, cb func(idx uint64, ls LaneState) error) error {
	arr, err := st.lanes(ctx)
	if err != nil {
		return err
	}
	return arr.ForEach(ctx, func(i uint64, d *codec.Deferred) error {
		var ls LaneState
		if err := codec.Decode(d.Raw, &ls); err != nil {
			return err
		}
		return cb(i, ls)
	})
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if st.toSend.LessThan(big.Zero()) {
		return actors.Violation(actors.KindPaych, "negative pending payout")
	}
	return st.ForEachLaneState(ctx, func(idx uint64, ls LaneState) error {
		if ls.Redeemed.LessThan(big.Zero()) {
			return actors.Violation(actors.KindPaych, "lane %d has negative redeemed amount", idx)
		}
		return nil
	})
}
