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

// Package account reads the account actor: the holder of a public-key
// address. Its single-field layout has been stable across every supported
// bundle version.
package account

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// State accesses one account actor's state.
type State interface {
	Version() actors.Version
	// PubkeyAddress returns the key address (secp256k1 or BLS) this account
	// answers for.
	PubkeyAddress() (address.Address, error)
	CheckInvariants(ctx context.Context) error
}

// Load decodes the account state rooted at root under bundle version v.
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

	addr address.Address
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(1)
	st.addr = abi.ReadAddr(r)
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(1)
	abi.WriteAddr(w, st.addr)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) PubkeyAddress() (address.Address, error) {
	return st.addr, nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	p := st.addr.Protocol()
	if p != address.SECP256K1 && p != address.BLS {
		return actors.Violation(actors.KindAccount, "pubkey address has protocol %d", p)
	}
	return nil
}
