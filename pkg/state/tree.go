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

// Package state reads the top of the persisted world state: the state root
// record and the address-keyed actor tree under it.
package state

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

// TreeVersion is the layout version of the state tree itself, independent of
// the actors bundle version.
type TreeVersion uint64

const (
	// TreeVersion4 covers bundle versions 8 and 9 (4-field actor records).
	TreeVersion4 TreeVersion = 4
	// TreeVersion5 covers bundle versions 10 and up (delegated addresses).
	TreeVersion5 TreeVersion = 5
)

// treeBitWidth is the trie width of the actor map.
const treeBitWidth = 5

// StateRoot is the top-level persisted record.
type StateRoot struct {
	Version TreeVersion
	Actors  cid.Cid
	Info    cid.Cid
}

func (sr *StateRoot) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(3)
	sr.Version = TreeVersion(r.ReadUint64())
	sr.Actors = r.ReadCid()
	sr.Info = r.ReadCid()
}

func (sr *StateRoot) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(3)
	w.WriteUint64(uint64(sr.Version))
	w.WriteCid(sr.Actors)
	w.WriteCid(sr.Info)
}

// Tree is a read handle on one state tree.
type Tree struct {
	root  StateRoot
	m     *adt.Map
	store store.Store
}

// LoadTree opens the state tree rooted at c.
func LoadTree(ctx context.Context, s store.Store, c cid.Cid) (*Tree, error) {
	data, err := store.Resolve(ctx, s, c)
	if err != nil {
		return nil, err
	}
	var root StateRoot
	if err := codec.Decode(data, &root); err != nil {
		return nil, err
	}
	if root.Version != TreeVersion4 && root.Version != TreeVersion5 {
		return nil, &codec.InvalidScalarError{Reason: "unknown state tree version"}
	}
	m, err := adt.AsMap(ctx, s, root.Actors, treeBitWidth)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root, m: m, store: s}, nil
}

// Version returns the tree layout version.
func (t *Tree) Version() TreeVersion {
	return t.root.Version
}

// Root returns the decoded state root record.
func (t *Tree) Root() StateRoot {
	return t.root
}

// GetActor looks up the actor record at addr, which must already be in ID
// form; the tree is keyed by ID address only.
func (t *Tree) GetActor(ctx context.Context, addr address.Address) (*actors.Actor, bool, error) {
	key, err := abi.IdAddrKey(addr)
	if err != nil {
		return nil, false, err
	}
	var act actors.Actor
	found, err := t.m.Get(ctx, key, &act)
	if err != nil || !found {
		return nil, found, err
	}
	return &act, true, nil
}

// ForEach visits every actor record keyed by its ID address.
func (t *Tree) ForEach(ctx context.Context, cb func(addr address.Address, act *actors.Actor) error) error {
	return t.m.ForEach(ctx, func(k []byte, v *codec.Deferred) error {
		addr, err := abi.ParseAddrKey(k)
		if err != nil {
			return err
		}
		var act actors.Actor
		if err := codec.Decode(v.Raw, &act); err != nil {
			return err
		}
		return cb(addr, &act)
	})
}

// ParallelForEach visits every actor record using up to workers goroutines.
// The callback must be safe for concurrent use.
func (t *Tree) ParallelForEach(ctx context.Context, workers int, cb func(addr address.Address, act *actors.Actor) error) error {
	return t.m.ParallelForEach(ctx, workers, func(k []byte, v *codec.Deferred) error {
		addr, err := abi.ParseAddrKey(k)
		if err != nil {
			return err
		}
		var act actors.Actor
		if err := codec.Decode(v.Raw, &act); err != nil {
			return err
		}
		return cb(addr, &act)
	})
}
