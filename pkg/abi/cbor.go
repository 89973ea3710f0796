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

package abi

import (
	"github.com/filecoin-project/go-address"

	"github.com/cerc-io/fil-state-service/pkg/codec"
)

// Addresses persist as their binary form in a byte string.
const maxAddressLength = 128

// ReadAddr decodes an address byte string.
func ReadAddr(r *codec.Reader) address.Address {
	raw := r.ReadBytes(maxAddressLength)
	if r.Err() != nil {
		return address.Undef
	}
	a, err := address.NewFromBytes(raw)
	if err != nil {
		r.Fail(&codec.InvalidScalarError{Reason: "malformed address"})
		return address.Undef
	}
	return a
}

// ReadOptionalAddr decodes either null or an address byte string, returning
// nil for null.
func ReadOptionalAddr(r *codec.Reader) *address.Address {
	if r.PeekNull() {
		r.ReadNull()
		return nil
	}
	a := ReadAddr(r)
	if r.Err() != nil {
		return nil
	}
	return &a
}

// WriteAddr encodes an address byte string.
func WriteAddr(w *codec.Writer, a address.Address) {
	w.WriteBytes(a.Bytes())
}

// WriteOptionalAddr encodes null for nil, the address byte string otherwise.
func WriteOptionalAddr(w *codec.Writer, a *address.Address) {
	if a == nil {
		w.WriteNull()
		return
	}
	WriteAddr(w, *a)
}

// ReadAddrSlice decodes a list of addresses of at most max entries.
func ReadAddrSlice(r *codec.Reader, max uint64) []address.Address {
	n := r.ReadArray()
	if r.Err() != nil {
		return nil
	}
	if n > max {
		r.Fail(&codec.InvalidScalarError{Reason: "address list too long"})
		return nil
	}
	out := make([]address.Address, n)
	for i := range out {
		out[i] = ReadAddr(r)
	}
	return out
}

// WriteAddrSlice encodes a list of addresses.
func WriteAddrSlice(w *codec.Writer, as []address.Address) {
	w.WriteArray(uint64(len(as)))
	for _, a := range as {
		WriteAddr(w, a)
	}
}
