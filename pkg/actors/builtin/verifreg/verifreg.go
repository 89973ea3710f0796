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

// Package verifreg reads the verified registry actor. Bundle version 8 keeps
// per-client datacap balances here; version 9 moved them to the datacap token
// actor and introduced allocations and claims, so the persisted layouts
// differ by version.
package verifreg

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

const bitWidth = 5

// DataCap is an amount of verified-deal quota, in bytes.
type DataCap = big.Int

// Allocation is a client's not-yet-claimed grant of datacap to a provider
// for one piece.
type Allocation struct {
	Client     abi.ActorID
	Provider   abi.ActorID
	Data       cid.Cid
	Size       abi.PaddedPieceSize
	TermMin    abi.ChainEpoch
	TermMax    abi.ChainEpoch
	Expiration abi.ChainEpoch
}

func (a *Allocation) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(7)
	a.Client = abi.ActorID(r.ReadUint64())
	a.Provider = abi.ActorID(r.ReadUint64())
	a.Data = r.ReadCid()
	a.Size = abi.PaddedPieceSize(r.ReadUint64())
	a.TermMin = abi.ChainEpoch(r.ReadInt64())
	a.TermMax = abi.ChainEpoch(r.ReadInt64())
	a.Expiration = abi.ChainEpoch(r.ReadInt64())
}

func (a *Allocation) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(7)
	w.WriteUint64(uint64(a.Client))
	w.WriteUint64(uint64(a.Provider))
	w.WriteCid(a.Data)
	w.WriteUint64(uint64(a.Size))
	w.WriteInt64(int64(a.TermMin))
	w.WriteInt64(int64(a.TermMax))
	w.WriteInt64(int64(a.Expiration))
}

// Claim is a provider's committed allocation: the piece landed in a sector.
type Claim struct {
	Provider  abi.ActorID
	Client    abi.ActorID
	Data      cid.Cid
	Size      abi.PaddedPieceSize
	TermMin   abi.ChainEpoch
	TermMax   abi.ChainEpoch
	TermStart abi.ChainEpoch
	Sector    abi.SectorNumber
}

func (c *Claim) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(8)
	c.Provider = abi.ActorID(r.ReadUint64())
	c.Client = abi.ActorID(r.ReadUint64())
	c.Data = r.ReadCid()
	c.Size = abi.PaddedPieceSize(r.ReadUint64())
	c.TermMin = abi.ChainEpoch(r.ReadInt64())
	c.TermMax = abi.ChainEpoch(r.ReadInt64())
	c.TermStart = abi.ChainEpoch(r.ReadInt64())
	c.Sector = abi.SectorNumber(r.ReadUint64())
}

func (c *Claim) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(8)
	w.WriteUint64(uint64(c.Provider))
	w.WriteUint64(uint64(c.Client))
	w.WriteCid(c.Data)
	w.WriteUint64(uint64(c.Size))
	w.WriteInt64(int64(c.TermMin))
	w.WriteInt64(int64(c.TermMax))
	w.WriteInt64(int64(c.TermStart))
	w.WriteUint64(uint64(c.Sector))
}

// State accesses the verified registry actor's state.
type State interface {
	Version() actors.Version
	RootKey() (address.Address, error)
	VerifierDataCap(ctx context.Context, verifier address.Address) (DataCap, bool, error)
	ForEachVerifier(ctx context.Context, cb func(addr address.Address, dcap DataCap) error) error
	// VerifiedClientDataCap reads a client's balance; only version 8 keeps
	// them here.
	VerifiedClientDataCap(ctx context.Context, client address.Address) (DataCap, bool, error)
	// NextAllocationID is meaningful from version 9 on.
	NextAllocationID() (abi.AllocationID, error)
	GetAllocation(ctx context.Context, client abi.ActorID, id abi.AllocationID) (*Allocation, bool, error)
	GetClaim(ctx context.Context, provider abi.ActorID, id abi.ClaimID) (*Claim, bool, error)
	ForEachClaim(ctx context.Context, provider abi.ActorID, cb func(id abi.ClaimID, claim Claim) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the verified registry state rooted at root under bundle
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

	rootKey   address.Address
	verifiers cid.Cid
	// version 8 only
	verifiedClients cid.Cid
	removeProposals cid.Cid
	// version 9 and up
	allocations cid.Cid
	nextAllocID uint64
	claims      cid.Cid
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	if st.version == actors.V8 {
		r.ExpectArray(4)
		st.rootKey = abi.ReadAddr(r)
		st.verifiers = r.ReadCid()
		st.verifiedClients = r.ReadCid()
		st.removeProposals = r.ReadCid()
		return
	}
	r.ExpectArray(6)
	st.rootKey = abi.ReadAddr(r)
	st.verifiers = r.ReadCid()
	st.removeProposals = r.ReadCid()
	st.allocations = r.ReadCid()
	st.nextAllocID = r.ReadUint64()
	st.claims = r.ReadCid()
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	if st.version == actors.V8 {
		w.WriteArray(4)
		abi.WriteAddr(w, st.rootKey)
		w.WriteCid(st.verifiers)
		w.WriteCid(st.verifiedClients)
		w.WriteCid(st.removeProposals)
		return
	}
	w.WriteArray(6)
	abi.WriteAddr(w, st.rootKey)
	w.WriteCid(st.verifiers)
	w.WriteCid(st.removeProposals)
	w.WriteCid(st.allocations)
	w.WriteUint64(st.nextAllocID)
	w.WriteCid(st.claims)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) RootKey() (address.Address, error) {
	return st.rootKey, nil
}

func (st *state) VerifierDataCap(ctx context.Context, verifier address.Address) (DataCap, bool, error) {
	m, err := adt.AsMap(ctx, st.store, st.verifiers, bitWidth)
	if err != nil {
		return big.Zero(), false, err
	}
	var dcap big.Int
	found, err := m.Get(ctx, abi.AddrKey(verifier), &dcap)
	if err != nil || !found {
		return big.Zero(), found, err
	}
	return dcap, true, nil
}

func (st *state) ForEachVerifier(ctx context.Context, cb func(addr address.Address, dcap DataCap) error) error {
	m, err := adt.AsMap(ctx, st.store, st.verifiers, bitWidth)
	if err != nil {
		return err
	}
	return m.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		a, err := abi.ParseAddrKey(k)
		if err != nil {
			return err
		}
		var dcap big.Int
		if err := codec.Decode(d.Raw, &dcap); err != nil {
			return err
		}
		return cb(a, dcap)
	})
}

func (st *state) VerifiedClientDataCap(ctx context.Context, client address.Address) (DataCap, bool, error) {
	if st.version != actors.V8 {
		return big.Zero(), false, fmt.Errorf("verified client balances moved to the datacap actor in v9")
	}
	m, err := adt.AsMap(ctx, st.store, st.verifiedClients, bitWidth)
	if err != nil {
		return big.Zero(), false, err
	}
	var dcap big.Int
	found, err := m.Get(ctx, abi.AddrKey(client), &dcap)
	if err != nil || !found {
		return big.Zero(), found, err
	}
	return dcap, true, nil
}

func (st *state) NextAllocationID() (abi.AllocationID, error) {
	if st.version == actors.V8 {
		return 0, fmt.Errorf("allocations were introduced in v9")
	}
	return abi.AllocationID(st.nextAllocID), nil
}

// innerRoot is the value shape of the outer allocation/claim maps: the
// address of a per-actor inner map.
type innerRoot struct {
	c cid.Cid
}

func (ir *innerRoot) UnmarshalCBOR(r *codec.Reader) {
	ir.c = r.ReadCid()
}

func (ir *innerRoot) MarshalCBOR(w *codec.Writer) {
	w.WriteCid(ir.c)
}

func (st *state) innerMap(ctx context.Context, outer cid.Cid, actor abi.ActorID) (*adt.Map, bool, error) {
	om, err := adt.AsMap(ctx, st.store, outer, bitWidth)
	if err != nil {
		return nil, false, err
	}
	idAddr, err := address.NewIDAddress(uint64(actor))
	if err != nil {
		return nil, false, err
	}
	var ir innerRoot
	found, err := om.Get(ctx, abi.AddrKey(idAddr), &ir)
	if err != nil || !found {
		return nil, found, err
	}
	im, err := adt.AsMap(ctx, st.store, ir.c, bitWidth)
	if err != nil {
		return nil, false, err
	}
	return im, true, nil
}

func (st *state) GetAllocation(ctx context.Context, client abi.ActorID, id abi.AllocationID) (*Allocation, bool, error) {
	if st.version == actors.V8 {
		return nil, false, fmt.Errorf("allocations were introduced in v9")
	}
	im, found, err := st.innerMap(ctx, st.allocations, client)
	if err != nil || !found {
		return nil, false, err
	}
	var alloc Allocation
	found, err = im.Get(ctx, abi.UIntKey(uint64(id)), &alloc)
	if err != nil || !found {
		return nil, found, err
	}
	return &alloc, true, nil
}

func (st *state) GetClaim(ctx context.Context, provider abi.ActorID, id abi.ClaimID) (*Claim, bool, error) {
	if st.version == actors.V8 {
		return nil, false, fmt.Errorf("claims were introduced in v9")
	}
	im, found, err := st.innerMap(ctx, st.claims, provider)
	if err != nil || !found {
		return nil, false, err
	}
	var claim Claim
	found, err = im.Get(ctx, abi.UIntKey(uint64(id)), &claim)
	if err != nil || !found {
		return nil, found, err
	}
	return &claim, true, nil
}

func (st *state) ForEachClaim(ctx context.Context, provider abi.ActorID, cb func(id abi.ClaimID, claim Claim) error) error {
	if st.version == actors.V8 {
		return fmt.Errorf("claims were introduced in v9")
	}
	im, found, err := st.innerMap(ctx, st.claims, provider)
	if err != nil || !found {
		return err
	}
	return im.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		id, err := abi.ParseUIntKey(k)
		if err != nil {
			return err
		}
		var claim Claim
		if err := codec.Decode(d.Raw, &claim); err != nil {
			return err
		}
		return cb(abi.ClaimID(id), claim)
	})
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if err := st.ForEachVerifier(ctx, func(addr address.Address, dcap DataCap) error {
		if dcap.LessThan(big.Zero()) {
			return actors.Violation(actors.KindVerifreg, "verifier %s has negative datacap", addr)
		}
		return nil
	}); err != nil {
		return err
	}
	if st.version == actors.V8 {
		return nil
	}
	// every allocation ID must be below the allocation counter
	om, err := adt.AsMap(ctx, st.store, st.allocations, bitWidth)
	if err != nil {
		return err
	}
	return om.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		var ir innerRoot
		if err := codec.Decode(d.Raw, &ir); err != nil {
			return err
		}
		im, err := adt.AsMap(ctx, st.store, ir.c, bitWidth)
		if err != nil {
			return err
		}
		return im.ForEach(ctx, func(ik []byte, _ *codec.Deferred) error {
			id, err := abi.ParseUIntKey(ik)
			if err != nil {
				return err
			}
			if id >= st.nextAllocID {
				return actors.Violation(actors.KindVerifreg, "allocation %d at or past counter %d", id, st.nextAllocID)
			}
			return nil
		})
	})
}
