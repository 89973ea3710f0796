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

// Package store defines the content-addressed block store boundary consumed
// by every higher layer, together with the address codec and a small set of
// store implementations (memory, CAR snapshot, verifying and caching
// wrappers). The read path never originates writes; Put exists only for the
// trie/array engines' functional-update operations, which write through
// whatever store the caller supplies.
package store

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Codecs for the blocks this service reads.
const (
	CodecDagCBOR = cid.DagCBOR
	CodecRaw     = cid.Raw
)

// DefaultHashFunction is blake2b-256, the hash every consensus block is
// addressed with.
const DefaultHashFunction = uint64(mh.BLAKE2B_MIN + 31)

// Store is the abstract content-addressed byte store.
type Store interface {
	// Get returns the block addressed by c, or a MissingBlockError.
	Get(ctx context.Context, c cid.Cid) ([]byte, error)
	// Put stores data under its content address and returns that address.
	// Read-only stores return ErrReadOnlyStore.
	Put(ctx context.Context, codec uint64, data []byte) (cid.Cid, error)
}

// MissingBlockError reports that the store cannot supply an address.
type MissingBlockError struct {
	Cid cid.Cid
}

func (e *MissingBlockError) Error() string {
	return fmt.Sprintf("store: missing block %s", e.Cid)
}

// DigestMismatchError reports that a block's bytes do not hash to the address
// they were fetched under.
type DigestMismatchError struct {
	Cid cid.Cid
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("store: block bytes do not match digest of %s", e.Cid)
}

// ErrReadOnlyStore is returned by Put on stores that do not accept writes.
var ErrReadOnlyStore = fmt.Errorf("store: read-only store")

// AddressOf computes the content address of data under the default hash
// function. It is a pure function: identical bytes always yield the identical
// address.
func AddressOf(codec uint64, data []byte) (cid.Cid, error) {
	builder := cid.V1Builder{Codec: codec, MhType: DefaultHashFunction}
	return builder.Sum(data)
}

// Verify recomputes the digest of data under the address's own prefix and
// compares. Identity-hashed addresses verify by byte equality of the payload.
func Verify(c cid.Cid, data []byte) error {
	prefix := c.Prefix()
	recomputed, err := prefix.Sum(data)
	if err != nil {
		return err
	}
	if !recomputed.Equals(c) {
		return &DigestMismatchError{Cid: c}
	}
	return nil
}

// Resolve returns the bytes addressed by c. Identity-hashed ("inline")
// addresses carry their payload in the digest and resolve without a store
// round trip; callers cannot tell the difference.
func Resolve(ctx context.Context, s Store, c cid.Cid) ([]byte, error) {
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return nil, err
	}
	if decoded.Code == mh.IDENTITY {
		return decoded.Digest, nil
	}
	return s.Get(ctx, c)
}
