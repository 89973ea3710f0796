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

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// MemoryStore is a concurrency-safe in-memory block store. It backs tests and
// holds CAR snapshot contents.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: make(map[cid.Cid][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.blocks[c]
	m.mu.RUnlock()
	if !ok {
		return nil, &MissingBlockError{Cid: c}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, codec uint64, data []byte) (cid.Cid, error) {
	c, err := AddressOf(codec, data)
	if err != nil {
		return cid.Undef, err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.mu.Lock()
	m.blocks[c] = stored
	m.mu.Unlock()
	return c, nil
}

// PutBlock stores a pre-addressed block, verifying its bytes against the
// claimed address. The CAR loader uses this.
func (m *MemoryStore) PutBlock(blk blocks.Block) error {
	data := blk.RawData()
	if err := Verify(blk.Cid(), data); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.mu.Lock()
	m.blocks[blk.Cid()] = stored
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored blocks.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
