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

package store

import (
	"context"

	"github.com/ipfs/go-cid"
)

// VerifiedStore recomputes the digest of every fetched block and fails loads
// whose bytes do not hash to the claimed address. Layer it over stores whose
// contents cross a trust boundary.
type VerifiedStore struct {
	inner Store
}

func NewVerifiedStore(inner Store) *VerifiedStore {
	return &VerifiedStore{inner: inner}
}

func (v *VerifiedStore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	data, err := v.inner.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := Verify(c, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (v *VerifiedStore) Put(ctx context.Context, codec uint64, data []byte) (cid.Cid, error) {
	return v.inner.Put(ctx, codec, data)
}
