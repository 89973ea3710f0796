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

// Package big wraps math/big with the canonical sign-prefixed byte encoding
// used for on-chain quantities (token amounts, storage power, deal weights).
package big

import (
	"fmt"
	big2 "math/big"

	"github.com/cerc-io/fil-state-service/pkg/codec"
)

// Int is a wrapper around math/big.Int. The zero value behaves as numeric
// zero.
type Int struct {
	*big2.Int
}

func Zero() Int {
	return Int{Int: big2.NewInt(0)}
}

func NewInt(v int64) Int {
	return Int{Int: big2.NewInt(v)}
}

func NewFromGo(v *big2.Int) Int {
	return Int{Int: new(big2.Int).Set(v)}
}

func FromString(s string) (Int, error) {
	v, ok := new(big2.Int).SetString(s, 10)
	if !ok {
		return Int{}, fmt.Errorf("failed to parse %q as a big integer", s)
	}
	return Int{Int: v}, nil
}

func Add(a, b Int) Int {
	return Int{Int: new(big2.Int).Add(a.norm(), b.norm())}
}

func Sub(a, b Int) Int {
	return Int{Int: new(big2.Int).Sub(a.norm(), b.norm())}
}

func Mul(a, b Int) Int {
	return Int{Int: new(big2.Int).Mul(a.norm(), b.norm())}
}

func Cmp(a, b Int) int {
	return a.norm().Cmp(b.norm())
}

func (i Int) norm() *big2.Int {
	if i.Int == nil {
		return big2.NewInt(0)
	}
	return i.Int
}

func (i Int) Nil() bool {
	return i.Int == nil
}

func (i Int) IsZero() bool {
	return i.norm().Sign() == 0
}

func (i Int) Equals(o Int) bool {
	return Cmp(i, o) == 0
}

func (i Int) LessThan(o Int) bool {
	return Cmp(i, o) < 0
}

func (i Int) GreaterThan(o Int) bool {
	return Cmp(i, o) > 0
}

func (i Int) Copy() Int {
	return Int{Int: new(big2.Int).Set(i.norm())}
}

func (i Int) String() string {
	return i.norm().String()
}

func (i *Int) UnmarshalCBOR(r *codec.Reader) {
	i.Int = r.ReadBigInt()
}

func (i Int) MarshalCBOR(w *codec.Writer) {
	w.WriteBigInt(i.Int)
}

// MarshalJSON renders the integer as a decimal string, which is how balances
// appear on RPC surfaces.
func (i Int) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.String() + `"`), nil
}

func (i *Int) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("expected quoted big integer string")
	}
	v, err := FromString(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	i.Int = v.Int
	return nil
}
