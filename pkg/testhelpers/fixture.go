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

// Package testhelpers assembles miniature world states in memory for tests
// elsewhere in the repo.
package testhelpers

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/state"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// CodeCid fabricates a deterministic code address for kind under bundle
// version v: the manifest name inlined behind an identity multihash.
func CodeCid(v actors.Version, kind actors.Kind) cid.Cid {
	b := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	c, err := b.Sum([]byte(fmt.Sprintf("fil/%d/%s", v, kind)))
	if err != nil {
		panic(err)
	}
	return c
}

// IDAddress returns the ID address for id.
func IDAddress(id uint64) address.Address {
	a, err := address.NewIDAddress(id)
	if err != nil {
		panic(err)
	}
	return a
}

// WriteManifest persists a bundle manifest covering every actor family of
// version v, with CodeCid supplying the code addresses.
func WriteManifest(ctx context.Context, s store.Store, v actors.Version) (cid.Cid, error) {
	kinds := actors.KindsForVersion(v)
	w := codec.NewWriter()
	w.WriteArray(uint64(len(kinds)))
	for _, k := range kinds {
		w.WriteArray(2)
		w.WriteString(string(k))
		w.WriteCid(CodeCid(v, k))
	}
	data, err := w.Bytes()
	if err != nil {
		return cid.Undef, err
	}
	entries, err := s.Put(ctx, store.CodecDagCBOR, data)
	if err != nil {
		return cid.Undef, err
	}

	w = codec.NewWriter()
	w.WriteArray(2)
	w.WriteUint64(1)
	w.WriteCid(entries)
	data, err = w.Bytes()
	if err != nil {
		return cid.Undef, err
	}
	return s.Put(ctx, store.CodecDagCBOR, data)
}

// TreeBuilder accumulates actor records and flushes them into a state tree a
// reader can load. The system actor at f00 is installed up front so registry
// bootstrap works against the result.
type TreeBuilder struct {
	s        *store.MemoryStore
	v        actors.Version
	m        *adt.Map
	manifest cid.Cid
}

func NewTreeBuilder(ctx context.Context, v actors.Version) (*TreeBuilder, error) {
	s := store.NewMemoryStore()
	manifest, err := WriteManifest(ctx, s, v)
	if err != nil {
		return nil, err
	}

	b := &TreeBuilder{
		s:        s,
		v:        v,
		m:        adt.MakeEmptyMap(s, 5),
		manifest: manifest,
	}

	w := codec.NewWriter()
	w.WriteArray(1)
	w.WriteCid(manifest)
	head, err := b.PutRaw(ctx, w)
	if err != nil {
		return nil, err
	}
	if err := b.SetActor(ctx, 0, actors.KindSystem, head, abi.NewTokenAmount(0)); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *TreeBuilder) Store() *store.MemoryStore {
	return b.s
}

func (b *TreeBuilder) Manifest() cid.Cid {
	return b.manifest
}

// PutState persists a CBOR-marshalable value and returns its address.
func (b *TreeBuilder) PutState(ctx context.Context, v codec.Marshaler) (cid.Cid, error) {
	data, err := codec.Encode(v)
	if err != nil {
		return cid.Undef, err
	}
	return b.s.Put(ctx, store.CodecDagCBOR, data)
}

// PutRaw persists the bytes accumulated in w.
func (b *TreeBuilder) PutRaw(ctx context.Context, w *codec.Writer) (cid.Cid, error) {
	data, err := w.Bytes()
	if err != nil {
		return cid.Undef, err
	}
	return b.s.Put(ctx, store.CodecDagCBOR, data)
}

// SetActor installs an actor record at ID address id with the versioned code
// address for kind.
func (b *TreeBuilder) SetActor(ctx context.Context, id uint64, kind actors.Kind, head cid.Cid, balance abi.TokenAmount) error {
	act := &actors.Actor{
		Code:    CodeCid(b.v, kind),
		Head:    head,
		Balance: balance,
	}
	key, err := abi.IdAddrKey(IDAddress(id))
	if err != nil {
		return err
	}
	return b.m.Put(ctx, key, act)
}

// Flush writes the actor map and the state root record, returning the root
// address to load the tree from.
func (b *TreeBuilder) Flush(ctx context.Context) (cid.Cid, error) {
	actorsRoot, err := b.m.Root(ctx)
	if err != nil {
		return cid.Undef, err
	}

	// the info record carries no data this service reads
	w := codec.NewWriter()
	w.WriteArray(0)
	info, err := b.PutRaw(ctx, w)
	if err != nil {
		return cid.Undef, err
	}

	version := state.TreeVersion5
	if b.v < actors.V10 {
		version = state.TreeVersion4
	}
	root := &state.StateRoot{Version: version, Actors: actorsRoot, Info: info}
	return b.PutState(ctx, root)
}
