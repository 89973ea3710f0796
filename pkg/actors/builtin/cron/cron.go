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

// Package cron reads the cron actor: the fixed table of end-of-epoch upkeep
// calls.
package cron

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const maxEntries = 128

// Entry is one scheduled upkeep call.
type Entry struct {
	Receiver address.Address
	Method   abi.MethodNum
}

func (e *Entry) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	e.Receiver = abi.ReadAddr(r)
	e.Method = abi.MethodNum(r.ReadUint64())
}

func (e *Entry) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	abi.WriteAddr(w, e.Receiver)
	w.WriteUint64(uint64(e.Method))
}

// State accesses the cron actor's state.
type State interface {
	Version() actors.Version
	Entries() ([]Entry, error)
	CheckInvariants(ctx context.Context) error
}

// Load decodes the cron state rooted at root under bundle version v.
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

	entries []Entry
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(1)
	n := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if n > maxEntries {
		r.Fail(&codec.InvalidScalarError{Reason: "cron entry table too long"})
		return
	}
	st.entries = make([]Entry, n)
	for i := range st.entries {
		st.entries[i].UnmarshalCBOR(r)
	}
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(1)
	w.WriteArray(uint64(len(st.entries)))
	for i := range st.entries {
		st.entries[i].MarshalCBOR(w)
	}
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) Entries() ([]Entry, error) {
	out := make([]Entry, len(st.entries))
	copy(out, st.entries)
	return out, nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	for i, e := range st.entries {
		if e.Receiver.Protocol() != address.ID {
			return actors.Violation(actors.KindCron, "entry %d receiver is not an ID address", i)
		}
	}
	return nil
}
