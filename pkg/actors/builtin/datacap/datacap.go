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

// Package datacap reads the datacap token actor, which holds verified-client
// balances from bundle version 9 on. The embedded token state records its own
// trie width.
package datacap

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

// State accesses the datacap token actor's state.
type State interface {
	Version() actors.Version
	Governor() (address.Address, error)
	TotalSupply() (abi.TokenAmount, error)
	Balance(ctx context.Context, owner abi.ActorID) (abi.TokenAmount, bool, error)
	ForEachBalance(ctx context.Context, cb func(owner abi.ActorID, amount abi.TokenAmount) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the datacap state rooted at root under bundle version v.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) || v == actors.V8 {
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

	governor address.Address

	// token state
	supply     big.Int
	balances   cid.Cid
	allowances cid.Cid
	bitWidth   uint64
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	st.governor = abi.ReadAddr(r)
	r.ExpectArray(4)
	st.supply.UnmarshalCBOR(r)
	st.balances = r.ReadCid()
	st.allowances = r.ReadCid()
	st.bitWidth = r.ReadUint64()
	if r.Err() == nil && (st.bitWidth == 0 || st.bitWidth > 8) {
		r.Fail(&codec.InvalidScalarError{Reason: "token trie width out of range"})
	}
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	abi.WriteAddr(w, st.governor)
	w.WriteArray(4)
	st.supply.MarshalCBOR(w)
	w.WriteCid(st.balances)
	w.WriteCid(st.allowances)
	w.WriteUint64(st.bitWidth)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) Governor() (address.Address, error) {
	return st.governor, nil
}

func (st *state) TotalSupply() (abi.TokenAmount, error) {
	return st.supply, nil
}

func (st *state) Balance(ctx context.Context, owner abi.ActorID) (abi.TokenAmount, bool, error) {
	m, err := adt.AsMap(ctx, st.store, st.balances, int(st.bitWidth))
	if err != nil {
		return big.Zero(), false, err
	}
	var amt big.Int
	found, err := m.Get(ctx, abi.UIntKey(uint64(owner)), &amt)
	if err != nil || !found {
		return big.Zero(), found, err
	}
	return amt, true, nil
}

func (st *state) ForEachBalance(ctx context.Context, cb func(owner abi.ActorID, amount abi.TokenAmount) error) error {
	m, err := adt.AsMap(ctx, st.store, st.balances, int(st.bitWidth))
	if err != nil {
		return err
	}
	return m.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		id, err := abi.ParseUIntKey(k)
		if err != nil {
			return err
		}
		var amt big.Int
		if err := codec.Decode(d.Raw, &amt); err != nil {
			return err
		}
		return cb(abi.ActorID(id), amt)
	})
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if st.supply.LessThan(big.Zero()) {
		return actors.Violation(actors.KindDatacap, "negative total supply")
	}
	// balances must be non-negative and sum to the supply
	total := big.Zero()
	if err := st.ForEachBalance(ctx, func(owner abi.ActorID, amount abi.TokenAmount) error {
		if amount.LessThan(big.Zero()) {
			return actors.Violation(actors.KindDatacap, "actor %d has negative balance", owner)
		}
		total = big.Add(total, amount)
		return nil
	}); err != nil {
		return err
	}
	if !total.Equals(st.supply) {
		return actors.Violation(actors.KindDatacap, "balances sum to %s, supply is %s", total, st.supply)
	}
	return nil
}
