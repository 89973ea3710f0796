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

// Package eam reads the Ethereum address manager actor, present from bundle
// version 10. It carries no state of its own; its head must be the empty
// tuple.
package eam

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// State accesses the address manager actor's (empty) state.
type State interface {
	Version() actors.Version
	CheckInvariants(ctx context.Context) error
}

// Load verifies the state rooted at root is the empty tuple.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) || v < actors.V10 {
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
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(0)
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(0)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) CheckInvariants(ctx context.Context) error {
	return nil
}
