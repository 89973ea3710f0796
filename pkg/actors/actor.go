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

package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
)

// Actor is one entry of the state tree: the root record for a single actor.
// Older trees persist four fields; newer ones append the delegated address,
// nil when absent. The decoder accepts both shapes by tuple length.
type Actor struct {
	Code             cid.Cid
	Head             cid.Cid
	CallSeqNum       uint64
	Balance          abi.TokenAmount
	DelegatedAddress *address.Address
}

func (a *Actor) UnmarshalCBOR(r *codec.Reader) {
	n := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if n != 4 && n != 5 {
		r.Fail(&codec.InvalidScalarError{Reason: "actor record must have 4 or 5 fields"})
		return
	}
	a.Code = r.ReadCid()
	a.Head = r.ReadCid()
	a.CallSeqNum = r.ReadUint64()
	var bal big.Int
	bal.UnmarshalCBOR(r)
	a.Balance = bal
	if n == 5 {
		if r.PeekNull() {
			r.ReadNull()
		} else {
			raw := r.ReadBytes(128)
			if r.Err() != nil {
				return
			}
			addr, err := address.NewFromBytes(raw)
			if err != nil {
				r.Fail(&codec.InvalidScalarError{Reason: "malformed delegated address"})
				return
			}
			a.DelegatedAddress = &addr
		}
	}
}

func (a *Actor) MarshalCBOR(w *codec.Writer) {
	n := uint64(4)
	if a.DelegatedAddress != nil {
		n = 5
	}
	w.WriteArray(n)
	w.WriteCid(a.Code)
	w.WriteCid(a.Head)
	w.WriteUint64(a.CallSeqNum)
	a.Balance.MarshalCBOR(w)
	if a.DelegatedAddress != nil {
		w.WriteBytes(a.DelegatedAddress.Bytes())
	}
}
