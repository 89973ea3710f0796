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

// Package amt implements the indexed array used for all persisted sequences:
// a radix tree over uint64 indexes whose root records its bit width, height
// and entry count. Nodes load lazily from a content-addressed store; updates
// are functional and nothing is written until Flush.
package amt

import (
	"context"
	"math"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const (
	// defaultBitWidth gives eight slots per node.
	defaultBitWidth = 3

	minBitWidth = 1
	maxBitWidth = 18

	// MaxIndex is the highest settable index.
	MaxIndex = math.MaxUint64 - 1
)

// Root is the handle for one array: the persisted root records the tree
// parameters alongside the top node.
type Root struct {
	bitWidth uint
	height   uint64
	count    uint64
	node     *node

	store store.Store
}

// Option configures an array handle.
type Option func(*Root)

// UseTreeBitWidth overrides the per-node slot-count exponent. Unlike the
// trie's, it is persisted in the root and checked on load.
func UseTreeBitWidth(bitWidth uint) Option {
	return func(r *Root) {
		if bitWidth >= minBitWidth && bitWidth <= maxBitWidth {
			r.bitWidth = bitWidth
		}
	}
}

// NewAMT creates an empty array backed by s.
func NewAMT(s store.Store, opts ...Option) *Root {
	r := &Root{
		bitWidth: defaultBitWidth,
		store:    s,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.node = newNode(r.width(), true)
	return r
}

// LoadAMT fetches and decodes the array rooted at c. The persisted bit width
// wins over any option.
func LoadAMT(ctx context.Context, s store.Store, c cid.Cid) (*Root, error) {
	data, err := store.Resolve(ctx, s, c)
	if err != nil {
		return nil, err
	}
	r := &Root{store: s}
	rd := codec.NewReader(data)
	rd.ExpectArray(4)
	bw := rd.ReadUint64()
	if rd.Err() == nil && (bw < minBitWidth || bw > maxBitWidth) {
		rd.Fail(errInvalidBitWidth)
	}
	r.bitWidth = uint(bw)
	r.height = rd.ReadUint64()
	if rd.Err() == nil && r.height > heightLimit(r.bitWidth) {
		rd.Fail(errInvalidHeight)
	}
	r.count = rd.ReadUint64()
	if rd.Err() != nil {
		return nil, &CorruptNodeError{Cid: c, Cause: rd.Err()}
	}
	r.node = decodeNode(rd, r.width(), r.height == 0)
	if err := rd.Err(); err != nil {
		return nil, &CorruptNodeError{Cid: c, Cause: err}
	}
	if rd.Remaining() != 0 {
		return nil, &CorruptNodeError{Cid: c, Cause: errTrailingBytes}
	}
	if r.count > 0 && r.node.empty() {
		return nil, &CorruptNodeError{Cid: c, Cause: errEmptyNode}
	}
	return r, nil
}

func (r *Root) width() int {
	return 1 << r.bitWidth
}

// heightLimit is the height past which the tree would cover more than the
// full uint64 index space.
func heightLimit(bitWidth uint) uint64 {
	return uint64(64/bitWidth) + 1
}

// nodesForHeight returns the index span covered by one subtree at the given
// height, saturating at the full index space.
func nodesForHeight(bitWidth uint, height uint64) uint64 {
	shift := uint64(bitWidth) * height
	if shift >= 64 {
		return math.MaxUint64
	}
	return 1 << shift
}

// Count returns the number of set entries.
func (r *Root) Count() uint64 {
	return r.count
}

// Get looks up index i and decodes its value into out. It reports whether
// the index was set; a nil out checks presence only.
func (r *Root) Get(ctx context.Context, i uint64, out codec.Unmarshaler) (bool, error) {
	raw, found, err := r.GetRaw(ctx, i)
	if err != nil || !found {
		return found, err
	}
	if out == nil {
		return true, nil
	}
	return true, codec.Decode(raw, out)
}

// GetRaw looks up index i and returns its value as raw encoded bytes.
func (r *Root) GetRaw(ctx context.Context, i uint64) ([]byte, bool, error) {
	if i > MaxIndex {
		return nil, false, ErrIndexOutOfRange
	}
	if i >= nodesForHeight(r.bitWidth, r.height+1) {
		return nil, false, nil
	}
	return r.getAt(ctx, r.node, r.height, i)
}

func (r *Root) getAt(ctx context.Context, nd *node, height, i uint64) ([]byte, bool, error) {
	if height == 0 {
		v := nd.values[i]
		if v == nil {
			return nil, false, nil
		}
		return v.Raw, true, nil
	}
	span := nodesForHeight(r.bitWidth, height)
	l := nd.links[i/span]
	if l == nil {
		return nil, false, nil
	}
	child, err := l.loadChild(ctx, r.store, r.width(), height == 1)
	if err != nil {
		return nil, false, err
	}
	return r.getAt(ctx, child, height-1, i%span)
}

// Set stores v at index i, growing the tree as needed.
func (r *Root) Set(ctx context.Context, i uint64, v codec.Marshaler) error {
	raw, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return r.SetRaw(ctx, i, raw)
}

// SetRaw stores already-encoded bytes at index i.
func (r *Root) SetRaw(ctx context.Context, i uint64, raw []byte) error {
	if i > MaxIndex {
		return ErrIndexOutOfRange
	}
	// grow until the root spans i
	for i >= nodesForHeight(r.bitWidth, r.height+1) {
		top := newNode(r.width(), false)
		if !r.node.empty() {
			top.links[0] = &link{cached: r.node, dirty: true}
		}
		r.node = top
		r.height++
	}
	added, err := r.setAt(ctx, r.node, r.height, i, &codec.Deferred{Raw: raw})
	if err != nil {
		return err
	}
	if added {
		r.count++
	}
	return nil
}

func (r *Root) setAt(ctx context.Context, nd *node, height, i uint64, v *codec.Deferred) (bool, error) {
	if height == 0 {
		added := nd.values[i] == nil
		nd.values[i] = v
		return added, nil
	}
	span := nodesForHeight(r.bitWidth, height)
	slot := i / span
	l := nd.links[slot]
	if l == nil {
		l = &link{cached: newNode(r.width(), height == 1), dirty: true}
		nd.links[slot] = l
	}
	child, err := l.loadChild(ctx, r.store, r.width(), height == 1)
	if err != nil {
		return false, err
	}
	added, err := r.setAt(ctx, child, height-1, i%span, v)
	if err != nil {
		return false, err
	}
	l.dirty = true
	return added, nil
}

// Push appends v at the index equal to the current count. It is meant for
// densely packed arrays, where count and next free index coincide.
func (r *Root) Push(ctx context.Context, v codec.Marshaler) error {
	return r.Set(ctx, r.count, v)
}

// Delete clears index i, reporting whether it was set. Empty subtrees are
// pruned and the root shrinks while its top node spans only slot zero.
func (r *Root) Delete(ctx context.Context, i uint64) (bool, error) {
	if i > MaxIndex {
		return false, ErrIndexOutOfRange
	}
	if i >= nodesForHeight(r.bitWidth, r.height+1) {
		return false, nil
	}
	found, err := r.deleteAt(ctx, r.node, r.height, i)
	if err != nil || !found {
		return found, err
	}
	r.count--
	// shrink: a root whose only occupied slot is zero has a redundant level
	for r.height > 0 {
		onlyZero := true
		for s := 1; s < r.width(); s++ {
			if r.node.links[s] != nil {
				onlyZero = false
				break
			}
		}
		if !onlyZero {
			break
		}
		l := r.node.links[0]
		if l == nil {
			r.node = newNode(r.width(), r.height-1 == 0)
			r.height--
			continue
		}
		child, err := l.loadChild(ctx, r.store, r.width(), r.height == 1)
		if err != nil {
			return false, err
		}
		r.node = child
		r.height--
	}
	return true, nil
}

func (r *Root) deleteAt(ctx context.Context, nd *node, height, i uint64) (bool, error) {
	if height == 0 {
		if nd.values[i] == nil {
			return false, nil
		}
		nd.values[i] = nil
		return true, nil
	}
	span := nodesForHeight(r.bitWidth, height)
	slot := i / span
	l := nd.links[slot]
	if l == nil {
		return false, nil
	}
	child, err := l.loadChild(ctx, r.store, r.width(), height == 1)
	if err != nil {
		return false, err
	}
	found, err := r.deleteAt(ctx, child, height-1, i%span)
	if err != nil || !found {
		return found, err
	}
	if child.empty() {
		nd.links[slot] = nil
	} else {
		l.dirty = true
	}
	return true, nil
}

// ForEach visits every set entry in index order. Values are passed as raw
// encoded bytes.
func (r *Root) ForEach(ctx context.Context, cb func(i uint64, v *codec.Deferred) error) error {
	return r.forEachAt(ctx, r.node, r.height, 0, cb)
}

func (r *Root) forEachAt(ctx context.Context, nd *node, height, offset uint64, cb func(i uint64, v *codec.Deferred) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if height == 0 {
		for i, v := range nd.values {
			if v == nil {
				continue
			}
			if err := cb(offset+uint64(i), v); err != nil {
				return err
			}
		}
		return nil
	}
	span := nodesForHeight(r.bitWidth, height)
	for s, l := range nd.links {
		if l == nil {
			continue
		}
		child, err := l.loadChild(ctx, r.store, r.width(), height == 1)
		if err != nil {
			return err
		}
		if err := r.forEachAt(ctx, child, height-1, offset+uint64(s)*span, cb); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every modified node bottom-up and returns the root address.
func (r *Root) Flush(ctx context.Context) (cid.Cid, error) {
	if err := r.flushNode(ctx, r.node, r.height); err != nil {
		return cid.Undef, err
	}
	w := codec.NewWriter()
	w.WriteArray(4)
	w.WriteUint64(uint64(r.bitWidth))
	w.WriteUint64(r.height)
	w.WriteUint64(r.count)
	r.node.marshalCBOR(w, r.width())
	data, err := w.Bytes()
	if err != nil {
		return cid.Undef, err
	}
	return r.store.Put(ctx, store.CodecDagCBOR, data)
}

func (r *Root) flushNode(ctx context.Context, nd *node, height uint64) error {
	if height == 0 {
		return nil
	}
	for _, l := range nd.links {
		if l == nil || l.cached == nil || (!l.dirty && l.c.Defined()) {
			continue
		}
		if err := r.flushNode(ctx, l.cached, height-1); err != nil {
			return err
		}
		w := codec.NewWriter()
		l.cached.marshalCBOR(w, r.width())
		data, err := w.Bytes()
		if err != nil {
			return err
		}
		c, err := r.store.Put(ctx, store.CodecDagCBOR, data)
		if err != nil {
			return err
		}
		l.c = c
		l.dirty = false
	}
	return nil
}
