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
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/multiformats/go-varint"
)

// Key derivation for the persisted hashed-trie maps. These are pure functions
// of already-decoded scalars; external tooling uses them to compute lookup
// keys without touching a store. The byte layouts are frozen: they feed the
// key hash, so any drift changes every map's shape.

// AddrKey returns the trie key for an address: its binary form, protocol byte
// included.
func AddrKey(a address.Address) []byte {
	return a.Bytes()
}

// IdAddrKey returns the trie key for the ID form of an address. It fails on
// non-ID addresses rather than silently hashing an unresolved key.
func IdAddrKey(a address.Address) ([]byte, error) {
	if a.Protocol() != address.ID {
		return nil, fmt.Errorf("expected ID address, got protocol %d", a.Protocol())
	}
	return a.Bytes(), nil
}

// UIntKey returns the trie key for an unsigned integer: its unsigned varint
// encoding.
func UIntKey(k uint64) []byte {
	return varint.ToUvarint(k)
}

// ParseUIntKey inverts UIntKey.
func ParseUIntKey(k []byte) (uint64, error) {
	v, n, err := varint.FromUvarint(k)
	if err != nil {
		return 0, err
	}
	if n != len(k) {
		return 0, fmt.Errorf("%d trailing bytes after varint key", len(k)-n)
	}
	return v, nil
}

// IntKey returns the trie key for a signed integer. Epoch-keyed queues use
// this with non-negative epochs.
func IntKey(k int64) []byte {
	if k < 0 {
		// zigzag, so small negatives stay short
		return varint.ToUvarint(uint64(k<<1) ^ uint64(k>>63))
	}
	return varint.ToUvarint(uint64(k) << 1)
}

// SectorKey returns the indexed-array key for a sector number.
func SectorKey(s SectorNumber) uint64 {
	return uint64(s)
}

// DealKey returns the indexed-array key for a deal ID.
func DealKey(d DealID) uint64 {
	return uint64(d)
}

// EpochKey returns the trie key for a chain epoch.
func EpochKey(e ChainEpoch) []byte {
	return IntKey(int64(e))
}

// ParseAddrKey inverts AddrKey.
func ParseAddrKey(k []byte) (address.Address, error) {
	return address.NewFromBytes(k)
}
