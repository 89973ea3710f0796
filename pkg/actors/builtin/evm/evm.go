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

// Package evm reads the EVM contract actor, present from bundle version 10.
// The contract's storage slots live in a trie rooted at ContractState; the
// bytecode is a separate raw block.
package evm

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const bytecodeHashLength = 32

// Tombstone marks a self-destructed contract: the actor that ran the
// destruct and its nonce at the time.
type Tombstone struct {
	Origin abi.ActorID
	Nonce  uint64
}

func (t *Tombstone) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	t.Origin = abi.ActorID(r.ReadUint64())
	t.Nonce = r.ReadUint64()
}

func (t *Tombstone) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	w.WriteUint64(uint64(t.Origin))
	w.WriteUint64(t.Nonce)
}

// State accesses an EVM contract actor's state.
type State interface {
	Version() actors.Version
	BytecodeCID() (cid.Cid, error)
	// Bytecode fetches the contract's deployed code from the store.
	Bytecode(ctx context.Context) ([]byte, error)
	BytecodeHash() ([]byte, error)
	ContractStateRoot() (cid.Cid, error)
	Nonce() (uint64, error)
	// IsAlive reports whether the contract has not self-destructed.
	IsAlive() (bool, error)
	GetTombstone() (*Tombstone, error)
	CheckInvariants(ctx context.Context) error
}

// Load decodes the EVM contract state rooted at root under bundle version v.
// Contracts exist from version 10 on.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) || v < actors.V10 {
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

	bytecode      cid.Cid
	bytecodeHash  []byte
	contractState cid.Cid
	nonce         uint64
	tombstone     *Tombstone
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(5)
	st.bytecode = r.ReadCid()
	st.bytecodeHash = r.ReadBytes(bytecodeHashLength)
	if r.Err() == nil && len(st.bytecodeHash) != bytecodeHashLength {
		r.Fail(&codec.InvalidScalarError{Reason: "bytecode hash is not 32 bytes"})
		return
	}
	st.contractState = r.ReadCid()
	st.nonce = r.ReadUint64()
	if r.PeekNull() {
		r.ReadNull()
		return
	}
	st.tombstone = &Tombstone{}
	st.tombstone.UnmarshalCBOR(r)
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(5)
	w.WriteCid(st.bytecode)
	w.WriteBytes(st.bytecodeHash)
	w.WriteCid(st.contractState)
	w.WriteUint64(st.nonce)
	if st.tombstone == nil {
		w.WriteNull()
		return
	}
	st.tombstone.MarshalCBOR(w)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) BytecodeCID() (cid.Cid, error) {
	return st.bytecode, nil
}

func (st *state) Bytecode(ctx context.Context) ([]byte, error) {
	return store.Resolve(ctx, st.store, st.bytecode)
}

func (st *state) BytecodeHash() ([]byte, error) {
	return st.bytecodeHash, nil
}

func (st *state) ContractStateRoot() (cid.Cid, error) {
	return st.contractState, nil
}

func (st *state) Nonce() (uint64, error) {
	return st.nonce, nil
}

func (st *state) IsAlive() (bool, error) {
	return st.tombstone == nil, nil
}

func (st *state) GetTombstone() (*Tombstone, error) {
	return st.tombstone, nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if !st.bytecode.Defined() {
		return actors.Violation(actors.KindEVM, "contract has no bytecode root")
	}
	if !st.contractState.Defined() {
		return actors.Violation(actors.KindEVM, "contract has no storage root")
	}
	return nil
}
