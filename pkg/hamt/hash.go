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

package hamt

import "crypto/sha256"

func defaultHash(key []byte) []byte {
	h := sha256.Sum256(key)
	return h[:]
}

// hashBits is a bit-window cursor over a key digest. Each trie level consumes
// bitWidth bits, most significant first.
type hashBits struct {
	b        []byte
	consumed int
}

func mkmask(n int) byte {
	return (1 << uint(n)) - 1
}

// Next returns the next i bits as an integer, or ErrMaxDepth once the digest
// is exhausted.
func (hb *hashBits) Next(i int) (int, error) {
	if hb.consumed+i > len(hb.b)*8 {
		return 0, ErrMaxDepth
	}
	return hb.next(i), nil
}

func (hb *hashBits) next(i int) int {
	curbi := hb.consumed / 8
	leftb := 8 - (hb.consumed % 8)
	curb := hb.b[curbi]
	switch {
	case i == leftb:
		out := int(mkmask(leftb) & curb)
		hb.consumed += i
		return out
	case i < leftb:
		a := curb & mkmask(leftb)
		b := a & ^mkmask(leftb-i)
		c := b >> uint(leftb-i)
		hb.consumed += i
		return int(c)
	default:
		out := int(mkmask(leftb) & curb)
		out = out << uint(i-leftb)
		hb.consumed += leftb
		out += hb.next(i - leftb)
		return out
	}
}
