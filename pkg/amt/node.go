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

package amt

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// link points at a child node, loaded lazily and cached.
type link struct {
	c      cid.Cid
	cached *node
	dirty  bool
}

// node is one node of the array in expanded form: slot i of an interior node
// links to the subtree covering the i-th span of the index range, slot i of a
// leaf holds the value at that offset. On the wire slots compact to a bitmap
// plus dense link and value arrays.
type node struct {
	links  []*link
	values []*codec.Deferred
}

func newNode(width int, leaf bool) *node {
	if leaf {
		return &node{values: make([]*codec.Deferred, width)}
	}
	return &node{links: make([]*link, width)}
}

func (nd *node) empty() bool {
	for _, l := range nd.links {
		if l != nil {
			return false
		}
	}
	for _, v := range nd.values {
		if v != nil {
			return false
		}
	}
	return true
}

func (nd *node) marshalCBOR(w *codec.Writer, width int) {
	bm := make([]byte, (width+7)/8)
	var nlinks, nvals uint64
	for i, l := range nd.links {
		if l != nil {
			bm[i/8] |= 1 << uint(i%8)
			nlinks++
		}
	}
	for i, v := range nd.values {
		if v != nil {
			bm[i/8] |= 1 << uint(i%8)
			nvals++
		}
	}
	w.WriteArray(3)
	w.WriteBytes(bm)
	w.WriteArray(nlinks)
	for _, l := range nd.links {
		if l != nil {
			w.WriteCid(l.c)
		}
	}
	w.WriteArray(nvals)
	for _, v := range nd.values {
		if v != nil {
			w.WriteRaw(v.Raw)
		}
	}
}

func decodeNode(r *codec.Reader, width int, leaf bool) *node {
	r.ExpectArray(3)
	bmLen := (width + 7) / 8
	bm := r.ReadBytes(uint64(bmLen))
	if r.Err() != nil {
		return nil
	}
	if len(bm) != bmLen {
		r.Fail(errBitmapMismatch)
		return nil
	}
	for i := width; i < bmLen*8; i++ {
		if bm[i/8]&(1<<uint(i%8)) != 0 {
			r.Fail(errBitmapMismatch)
			return nil
		}
	}
	var pop int
	for i := 0; i < width; i++ {
		if bm[i/8]&(1<<uint(i%8)) != 0 {
			pop++
		}
	}
	nd := newNode(width, leaf)
	nlinks := r.ReadArray()
	if r.Err() != nil {
		return nil
	}
	if leaf {
		if nlinks != 0 {
			r.Fail(errLeafWithLinks)
			return nil
		}
	} else {
		if nlinks != uint64(pop) {
			r.Fail(errBitmapMismatch)
			return nil
		}
		for i := 0; i < width; i++ {
			if bm[i/8]&(1<<uint(i%8)) != 0 {
				nd.links[i] = &link{c: r.ReadCid()}
			}
		}
	}

	nvals := r.ReadArray()
	if r.Err() != nil {
		return nil
	}
	if leaf {
		if nvals != uint64(pop) {
			r.Fail(errBitmapMismatch)
			return nil
		}
		for i := 0; i < width; i++ {
			if bm[i/8]&(1<<uint(i%8)) != 0 {
				d := &codec.Deferred{}
				d.UnmarshalCBOR(r)
				nd.values[i] = d
			}
		}
	} else if nvals != 0 {
		r.Fail(errInteriorWithValues)
		return nil
	}
	return nd
}

// loadChild fetches and caches the subtree behind slot link l. childLeaf says
// whether the child sits at height zero.
func (l *link) loadChild(ctx context.Context, s store.Store, width int, childLeaf bool) (*node, error) {
	if l.cached != nil {
		return l.cached, nil
	}
	data, err := store.Resolve(ctx, s, l.c)
	if err != nil {
		return nil, err
	}
	r := codec.NewReader(data)
	nd := decodeNode(r, width, childLeaf)
	if err := r.Err(); err != nil {
		return nil, &CorruptNodeError{Cid: l.c, Cause: err}
	}
	if r.Remaining() != 0 {
		return nil, &CorruptNodeError{Cid: l.c, Cause: errTrailingBytes}
	}
	// only the root of an empty array may be empty
	if nd.empty() {
		return nil, &CorruptNodeError{Cid: l.c, Cause: errEmptyNode}
	}
	l.cached = nd
	return nd, nil
}
