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

// Package init_ reads the init actor: the network name, the ID counter and
// the table resolving robust addresses to ID addresses.
package init_

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const addressMapBitWidth = 5

// State accesses the init actor's state.
type State interface {
	Version() actors.Version
	NetworkName() (string, error)
	NextID() (abi.ActorID, error)
	// ResolveAddress maps a robust address to its ID address. ID inputs
	// resolve to themselves.
	ResolveAddress(ctx context.Context, a address.Address) (address.Address, bool, error)
	// ForEachActor visits every (ID, robust address) pair in the table.
	ForEachActor(ctx context.Context, cb func(id abi.ActorID, robust address.Address) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the init state rooted at root under bundle version v.
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

	addressMap  cid.Cid
	nextID      uint64
	networkName string
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(3)
	st.addressMap = r.ReadCid()
	st.nextID = r.ReadUint64()
	st.networkName = r.ReadString(codec.MaxStringLength)
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(3)
	w.WriteCid(st.addressMap)
	w.WriteUint64(st.nextID)
	w.WriteString(st.networkName)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) NetworkName() (string, error) {
	return st.networkName, nil
}

func (st *state) NextID() (abi.ActorID, error) {
	return abi.ActorID(st.nextID), nil
}

// actorIDValue is the map's value shape: a bare unsigned integer.
type actorIDValue struct {
	id uint64
}

func (v *actorIDValue) UnmarshalCBOR(r *codec.Reader) {
	v.id = r.ReadUint64()
}

func (v *actorIDValue) MarshalCBOR(w *codec.Writer) {
	w.WriteUint64(v.id)
}

func (st *state) ResolveAddress(ctx context.Context, a address.Address) (address.Address, bool, error) {
	if a.Protocol() == address.ID {
		return a, true, nil
	}
	m, err := adt.AsMap(ctx, st.store, st.addressMap, addressMapBitWidth)
	if err != nil {
		return address.Undef, false, err
	}
	var v actorIDValue
	found, err := m.Get(ctx, abi.AddrKey(a), &v)
	if err != nil || !found {
		return address.Undef, false, err
	}
	out, err := address.NewIDAddress(v.id)
	if err != nil {
		return address.Undef, false, err
	}
	return out, true, nil
}

func (st *state) ForEachActor(ctx context.Context, cb func(id abi.ActorID, robust address.Address) error) error {
	m, err := adt.AsMap(ctx, st.store, st.addressMap, addressMapBitWidth)
	if err != nil {
		return err
	}
	return m.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		robust, err := abi.ParseAddrKey(k)
		if err != nil {
			return err
		}
		var v actorIDValue
		if err := codec.Decode(d.Raw, &v); err != nil {
			return err
		}
		return cb(abi.ActorID(v.id), robust)
	})
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if st.networkName == "" {
		return actors.Violation(actors.KindInit, "empty network name")
	}
	// every mapped ID must be below the allocation counter
	return st.ForEachActor(ctx, func(id abi.ActorID, robust address.Address) error {
		if uint64(id) >= st.nextID {
			return actors.Violation(actors.KindInit, "address %s maps to unallocated ID %d", robust, id)
		}
		if robust.Protocol() == address.ID {
			return actors.Violation(actors.KindInit, "ID address %s used as table key", robust)
		}
		return nil
	})
}
