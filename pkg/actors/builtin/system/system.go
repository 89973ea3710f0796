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

// Package system reads the system actor. Its state carries the address of
// the deployed bundle manifest, which is how the registry discovers code
// addresses without a built-in table.
package system

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// State accesses the system actor's state.
type State interface {
	Version() actors.Version
	// BuiltinActors returns the address of the bundle manifest.
	BuiltinActors() (cid.Cid, error)
	CheckInvariants(ctx context.Context) error
}

// Load decodes the system state rooted at root under bundle version v.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}
	data, err := store.Resolve(ctx, s, root)
	if err != nil {
		return nil, err
	}
	st := &state{version: v}
	if err := codec.Decode(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

type state struct {
	version actors.Version

	builtinActors cid.Cid
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(1)
	st.builtinActors = r.ReadCid()
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(1)
	w.WriteCid(st.builtinActors)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) BuiltinActors() (cid.Cid, error) {
	return st.builtinActors, nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if !st.builtinActors.Defined() {
		return actors.Violation(actors.KindSystem, "undefined manifest address")
	}
	return nil
}
