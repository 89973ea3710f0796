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
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/prom"
)

// CachedStore keeps an LRU of recently fetched blocks in front of a slower
// store. Content addressing makes the cache trivially coherent: an address
// always resolves to the same bytes, so concurrent queries may race to
// populate an entry and either result is correct. No fetch ever blocks on
// another's completion.
type CachedStore struct {
	inner Store
	cache *lru.Cache

	hits   int64
	misses int64
}

func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (cs *CachedStore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	if v, ok := cs.cache.Get(c); ok {
		atomic.AddInt64(&cs.hits, 1)
		prom.IncCacheHit()
		return v.([]byte), nil
	}
	atomic.AddInt64(&cs.misses, 1)
	prom.IncCacheMiss()
	data, err := cs.inner.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	// last write wins; both sides decoded identical bytes
	cs.cache.Add(c, data)
	return data, nil
}

func (cs *CachedStore) Put(ctx context.Context, codec uint64, data []byte) (cid.Cid, error) {
	c, err := cs.inner.Put(ctx, codec, data)
	if err != nil {
		return cid.Undef, err
	}
	cs.cache.Add(c, data)
	return c, nil
}

// Stats returns cumulative hit and miss counts.
func (cs *CachedStore) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&cs.hits), atomic.LoadInt64(&cs.misses)
}

// Len returns the number of cached blocks.
func (cs *CachedStore) Len() int {
	return cs.cache.Len()
}
