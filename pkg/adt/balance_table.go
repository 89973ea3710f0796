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

package adt

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// BalanceTable is a map of addresses to token amounts.
type BalanceTable struct {
	m *Map
}

// AsBalanceTable loads the balance table rooted at r.
func AsBalanceTable(ctx context.Context, s store.Store, r cid.Cid, bitWidth int) (*BalanceTable, error) {
	m, err := AsMap(ctx, s, r, bitWidth)
	if err != nil {
		return nil, err
	}
	return &BalanceTable{m: m}, nil
}

// Get returns the balance of a, zero if absent.
func (t *BalanceTable) Get(ctx context.Context, a address.Address) (abi.TokenAmount, error) {
	var out big.Int
	found, err := t.m.Get(ctx, abi.AddrKey(a), &out)
	if err != nil {
		return big.Zero(), err
	}
	if !found {
		return big.Zero(), nil
	}
	return out, nil
}

// Total sums every balance in the table.
func (t *BalanceTable) Total(ctx context.Context) (abi.TokenAmount, error) {
	total := big.Zero()
	err := t.m.ForEach(ctx, func(k []byte, v *codec.Deferred) error {
		var amt big.Int
		if err := codec.Decode(v.Raw, &amt); err != nil {
			return err
		}
		total = big.Add(total, amt)
		return nil
	})
	return total, err
}

// ForEach visits every balance.
func (t *BalanceTable) ForEach(ctx context.Context, cb func(a address.Address, amount abi.TokenAmount) error) error {
	return t.m.ForEach(ctx, func(k []byte, v *codec.Deferred) error {
		a, err := abi.ParseAddrKey(k)
		if err != nil {
			return err
		}
		var amt big.Int
		if err := codec.Decode(v.Raw, &amt); err != nil {
			return err
		}
		return cb(a, amt)
	})
}
