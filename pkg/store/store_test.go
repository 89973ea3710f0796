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
	"sync"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func TestAddressOfRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("some persisted record")
	c, err := s.Put(ctx, CodecDagCBOR, data)
	require.NoError(t, err)

	// the address is a pure function of codec and bytes
	again, err := AddressOf(CodecDagCBOR, data)
	require.NoError(t, err)
	require.Equal(t, c, again)

	other, err := AddressOf(CodecRaw, data)
	require.NoError(t, err)
	require.NotEqual(t, c, other)

	got, err := s.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestMissingBlock(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c, err := AddressOf(CodecDagCBOR, []byte("never stored"))
	require.NoError(t, err)

	_, err = s.Get(ctx, c)
	var missing *MissingBlockError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, c, missing.Cid)
}

func TestVerifyDigestMismatch(t *testing.T) {
	c, err := AddressOf(CodecDagCBOR, []byte("original"))
	require.NoError(t, err)

	require.NoError(t, Verify(c, []byte("original")))

	err = Verify(c, []byte("tampered"))
	var mismatch *DigestMismatchError
	require.ErrorAs(t, err, &mismatch)
}

// corruptStore returns bytes that do not hash to the requested address.
type corruptStore struct{}

func (corruptStore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	return []byte("garbage"), nil
}

func (corruptStore) Put(ctx context.Context, codec uint64, data []byte) (cid.Cid, error) {
	return cid.Undef, ErrReadOnlyStore
}

func TestVerifiedStoreRejectsCorruption(t *testing.T) {
	ctx := context.Background()
	vs := NewVerifiedStore(corruptStore{})

	c, err := AddressOf(CodecDagCBOR, []byte("expected"))
	require.NoError(t, err)

	_, err = vs.Get(ctx, c)
	var mismatch *DigestMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestResolveInlineIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore() // deliberately empty

	payload := []byte("inline payload")
	h, err := mh.Sum(payload, mh.IDENTITY, -1)
	require.NoError(t, err)
	c := cid.NewCidV1(cid.Raw, h)

	// identity-addressed data resolves without touching the store
	got, err := Resolve(ctx, s, c)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	cs, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	c, err := cs.Put(ctx, CodecDagCBOR, []byte("cached record"))
	require.NoError(t, err)

	// Put primed the cache
	_, err = cs.Get(ctx, c)
	require.NoError(t, err)
	hits, misses := cs.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(0), misses)

	c2, err := inner.Put(ctx, CodecDagCBOR, []byte("behind the cache"))
	require.NoError(t, err)
	_, err = cs.Get(ctx, c2)
	require.NoError(t, err)
	_, err = cs.Get(ctx, c2)
	require.NoError(t, err)
	hits, misses = cs.Stats()
	require.Equal(t, int64(2), hits)
	require.Equal(t, int64(1), misses)
}

func TestCachedStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	cs, err := NewCachedStore(inner, 128)
	require.NoError(t, err)

	var cids []cid.Cid
	for i := byte(0); i < 32; i++ {
		c, err := inner.Put(ctx, CodecDagCBOR, []byte{i})
		require.NoError(t, err)
		cids = append(cids, c)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range cids {
				data, err := cs.Get(ctx, c)
				require.NoError(t, err)
				require.Len(t, data, 1)
			}
		}()
	}
	wg.Wait()
}

func TestMemoryStorePutBlockVerifies(t *testing.T) {
	s := NewMemoryStore()

	c, err := AddressOf(CodecDagCBOR, []byte("right"))
	require.NoError(t, err)

	bad, err := blocks.NewBlockWithCid([]byte("wrong"), c)
	require.NoError(t, err)
	var mismatch *DigestMismatchError
	require.ErrorAs(t, s.PutBlock(bad), &mismatch)

	good, err := blocks.NewBlockWithCid([]byte("right"), c)
	require.NoError(t, err)
	require.NoError(t, s.PutBlock(good))
	require.Equal(t, 1, s.Len())
}
