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
	"io"
	"os"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
	log "github.com/sirupsen/logrus"

	"github.com/cerc-io/fil-state-service/pkg/prom"
)

// CARStore is a read-only store over the contents of a CAR snapshot, held in
// memory. Its roots are the snapshot's header roots (the state roots the
// snapshot was exported at).
type CARStore struct {
	mem   *MemoryStore
	roots []cid.Cid
}

// LoadCAR reads every block of a CAR stream into memory. Each block is
// verified against its claimed address on the way in, so a corrupted snapshot
// fails at load time rather than mid-query.
func LoadCAR(ctx context.Context, r io.Reader) (*CARStore, error) {
	start := time.Now()
	cr, err := car.NewCarReader(r)
	if err != nil {
		return nil, err
	}
	mem := NewMemoryStore()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := mem.PutBlock(blk); err != nil {
			return nil, err
		}
	}
	prom.SetSnapshotLoadTime(time.Since(start))
	log.WithFields(log.Fields{
		"blocks": mem.Len(),
		"roots":  len(cr.Header.Roots),
		"took":   time.Since(start),
	}).Info("loaded CAR snapshot")
	return &CARStore{mem: mem, roots: cr.Header.Roots}, nil
}

// OpenCAR loads a CAR snapshot from a file path.
func OpenCAR(ctx context.Context, path string) (*CARStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCAR(ctx, f)
}

// Roots returns the snapshot's header roots.
func (c *CARStore) Roots() []cid.Cid {
	return c.roots
}

// Len returns the number of loaded blocks.
func (c *CARStore) Len() int {
	return c.mem.Len()
}

func (c *CARStore) Get(ctx context.Context, cc cid.Cid) ([]byte, error) {
	prom.IncStoreGet()
	return c.mem.Get(ctx, cc)
}

// Put rejects writes; a snapshot is immutable.
func (c *CARStore) Put(ctx context.Context, codec uint64, data []byte) (cid.Cid, error) {
	return cid.Undef, ErrReadOnlyStore
}
