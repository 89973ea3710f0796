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

// Package hamt implements the hashed trie used for all persisted key/value
// collections. Keys are hashed with sha256 and consumed bitWidth bits per
// level; interior nodes hold a bitmap plus a compacted pointer array, and
// leaves hold small sorted buckets. Nodes load lazily from a content-addressed
// store, and updates are functional: nothing is written until Flush, which
// returns the new root address.
package hamt

import (
	"bytes"
	"context"
	"math/big"
	"math/bits"
	"sort"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"

	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const (
	// bucketSize is the maximum number of entries in a leaf bucket before it
	// splits into a child node.
	bucketSize = 3

	// defaultBitWidth is the per-level fanout exponent used by every
	// collection unless its schema says otherwise.
	defaultBitWidth = 5

	maxKeyLength = 512
)

// Node is one node of the trie. The root node doubles as the handle for the
// whole collection.
type Node struct {
	bitfield *big.Int
	pointers []*Pointer

	bitWidth int
	store    store.Store
}

// Option configures a trie handle.
type Option func(*Node)

// UseTreeBitWidth overrides the per-level fanout exponent. All nodes of one
// trie must agree on it; it is a schema parameter, not persisted.
func UseTreeBitWidth(bitWidth int) Option {
	return func(n *Node) {
		if bitWidth > 0 {
			n.bitWidth = bitWidth
		}
	}
}

// NewNode creates an empty trie backed by s.
func NewNode(s store.Store, opts ...Option) *Node {
	n := &Node{
		bitfield: big.NewInt(0),
		bitWidth: defaultBitWidth,
		store:    s,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// LoadNode fetches and decodes the node addressed by c. Decode and shape
// failures are reported as a CorruptNodeError carrying c.
func LoadNode(ctx context.Context, s store.Store, c cid.Cid, opts ...Option) (*Node, error) {
	data, err := store.Resolve(ctx, s, c)
	if err != nil {
		return nil, err
	}
	n := NewNode(s, opts...)
	if err := codec.Decode(data, n); err != nil {
		return nil, &CorruptNodeError{Cid: c, Cause: err}
	}
	if err := n.validate(); err != nil {
		return nil, &CorruptNodeError{Cid: c, Cause: err}
	}
	return n, nil
}

func (n *Node) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	w.WriteBytes(n.bitfield.Bytes())
	w.WriteArray(uint64(len(n.pointers)))
	for _, p := range n.pointers {
		p.MarshalCBOR(w)
	}
}

func (n *Node) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	maxBitmap := uint64(1<<uint(n.bitWidth)+7) / 8
	bm := r.ReadBytes(maxBitmap)
	if r.Err() != nil {
		return
	}
	n.bitfield = new(big.Int).SetBytes(bm)
	cnt := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if cnt > uint64(1)<<uint(n.bitWidth) {
		r.Fail(errBitmapMismatch)
		return
	}
	n.pointers = make([]*Pointer, cnt)
	for i := range n.pointers {
		p := &Pointer{}
		p.UnmarshalCBOR(r)
		n.pointers[i] = p
	}
}

// validate checks the shape rules that hold for every well-formed node.
func (n *Node) validate() error {
	var pop int
	for _, w := range n.bitfield.Bits() {
		pop += bits.OnesCount(uint(w))
	}
	if pop != len(n.pointers) {
		return errBitmapMismatch
	}
	for _, p := range n.pointers {
		if p.isShard() {
			continue
		}
		if err := validateBucket(p.KVs); err != nil {
			return err
		}
	}
	return nil
}

// indexForBitPos returns the compacted pointer index for bitmap position bp:
// the number of set bits below it.
func (n *Node) indexForBitPos(bp int) int {
	var count int
	words := n.bitfield.Bits()
	targetWord := bp / bits.UintSize
	for i := 0; i < targetWord && i < len(words); i++ {
		count += bits.OnesCount(uint(words[i]))
	}
	if targetWord < len(words) {
		mask := (big.Word(1) << uint(bp%bits.UintSize)) - 1
		count += bits.OnesCount(uint(words[targetWord] & mask))
	}
	return count
}

// Find looks up k and decodes its value into out. It reports whether the key
// was present; a nil out checks presence only.
func (n *Node) Find(ctx context.Context, k []byte, out codec.Unmarshaler) (bool, error) {
	raw, found, err := n.FindRaw(ctx, k)
	if err != nil || !found {
		return found, err
	}
	if out == nil {
		return true, nil
	}
	return true, codec.Decode(raw, out)
}

// FindRaw looks up k and returns its value as raw encoded bytes.
func (n *Node) FindRaw(ctx context.Context, k []byte) ([]byte, bool, error) {
	hv := &hashBits{b: defaultHash(k)}
	return n.getValue(ctx, hv, k)
}

func (n *Node) getValue(ctx context.Context, hv *hashBits, k []byte) ([]byte, bool, error) {
	idx, err := hv.Next(n.bitWidth)
	if err != nil {
		return nil, false, err
	}
	if n.bitfield.Bit(idx) == 0 {
		return nil, false, nil
	}
	p := n.pointers[n.indexForBitPos(idx)]
	if p.isShard() {
		child, err := p.loadChild(ctx, n.store, n.bitWidth)
		if err != nil {
			return nil, false, err
		}
		return child.getValue(ctx, hv, k)
	}
	for _, kv := range p.KVs {
		if bytes.Equal(kv.Key, k) {
			return kv.Value.Raw, true, nil
		}
	}
	return nil, false, nil
}

// Set stores v under k, replacing any existing value.
func (n *Node) Set(ctx context.Context, k []byte, v codec.Marshaler) error {
	raw, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return n.SetRaw(ctx, k, raw)
}

// SetRaw stores already-encoded bytes under k.
func (n *Node) SetRaw(ctx context.Context, k []byte, raw []byte) error {
	hv := &hashBits{b: defaultHash(k)}
	kc := make([]byte, len(k))
	copy(kc, k)
	return n.modifyValue(ctx, hv, kc, &codec.Deferred{Raw: raw})
}

func (n *Node) modifyValue(ctx context.Context, hv *hashBits, k []byte, v *codec.Deferred) error {
	idx, err := hv.Next(n.bitWidth)
	if err != nil {
		return err
	}
	if n.bitfield.Bit(idx) == 0 {
		n.insertPointer(idx, &Pointer{KVs: []*KV{{Key: k, Value: v}}})
		return nil
	}
	cindex := n.indexForBitPos(idx)
	child := n.pointers[cindex]
	if child.isShard() {
		chnd, err := child.loadChild(ctx, n.store, n.bitWidth)
		if err != nil {
			return err
		}
		if err := chnd.modifyValue(ctx, hv, k, v); err != nil {
			return err
		}
		child.dirty = true
		return nil
	}
	for _, kv := range child.KVs {
		if bytes.Equal(kv.Key, k) {
			kv.Value = v
			return nil
		}
	}
	if len(child.KVs) >= bucketSize {
		// bucket overflows: push its entries plus the new one one level down
		sub := NewNode(n.store, UseTreeBitWidth(n.bitWidth))
		hvcopy := &hashBits{b: hv.b, consumed: hv.consumed}
		if err := sub.modifyValue(ctx, hvcopy, k, v); err != nil {
			return err
		}
		for _, kv := range child.KVs {
			chhv := &hashBits{b: defaultHash(kv.Key), consumed: hv.consumed}
			if err := sub.modifyValue(ctx, chhv, kv.Key, kv.Value); err != nil {
				return err
			}
		}
		child.cache = sub
		child.dirty = true
		child.Link = cid.Undef
		child.KVs = nil
		return nil
	}
	np := &KV{Key: k, Value: v}
	for i := 0; i < len(child.KVs); i++ {
		if bytes.Compare(k, child.KVs[i].Key) < 0 {
			child.KVs = append(child.KVs[:i], append([]*KV{np}, child.KVs[i:]...)...)
			return nil
		}
	}
	child.KVs = append(child.KVs, np)
	return nil
}

func (n *Node) insertPointer(idx int, p *Pointer) {
	i := n.indexForBitPos(idx)
	n.bitfield.SetBit(n.bitfield, idx, 1)
	n.pointers = append(n.pointers[:i], append([]*Pointer{p}, n.pointers[i:]...)...)
}

// Delete removes k, reporting whether it was present. Child nodes left with
// at most one bucket's worth of entries collapse back into their parent, so
// a given set of entries always has exactly one trie shape.
func (n *Node) Delete(ctx context.Context, k []byte) (bool, error) {
	hv := &hashBits{b: defaultHash(k)}
	return n.rmValue(ctx, hv, k)
}

func (n *Node) rmValue(ctx context.Context, hv *hashBits, k []byte) (bool, error) {
	idx, err := hv.Next(n.bitWidth)
	if err != nil {
		return false, err
	}
	if n.bitfield.Bit(idx) == 0 {
		return false, nil
	}
	cindex := n.indexForBitPos(idx)
	child := n.pointers[cindex]
	if child.isShard() {
		chnd, err := child.loadChild(ctx, n.store, n.bitWidth)
		if err != nil {
			return false, err
		}
		found, err := chnd.rmValue(ctx, hv, k)
		if err != nil || !found {
			return found, err
		}
		child.dirty = true
		child.Link = cid.Undef
		n.cleanChild(child, cindex)
		return true, nil
	}
	for i, kv := range child.KVs {
		if bytes.Equal(kv.Key, k) {
			if len(child.KVs) == 1 {
				n.rmPointer(cindex, idx)
			} else {
				child.KVs = append(child.KVs[:i], child.KVs[i+1:]...)
			}
			return true, nil
		}
	}
	return false, nil
}

// cleanChild collapses a child node into a single bucket when its remaining
// entries fit in one and none of its pointers are shards.
func (n *Node) cleanChild(child *Pointer, cindex int) {
	chnd := child.cache
	var vals []*KV
	for _, p := range chnd.pointers {
		if p.isShard() {
			return
		}
		vals = append(vals, p.KVs...)
		if len(vals) > bucketSize {
			return
		}
	}
	sort.Slice(vals, func(i, j int) bool {
		return bytes.Compare(vals[i].Key, vals[j].Key) < 0
	})
	n.pointers[cindex] = &Pointer{KVs: vals}
}

func (n *Node) rmPointer(i, idx int) {
	n.pointers = append(n.pointers[:i], n.pointers[i+1:]...)
	n.bitfield.SetBit(n.bitfield, idx, 0)
}

// Flush writes every modified node bottom-up and returns the root address.
func (n *Node) Flush(ctx context.Context) (cid.Cid, error) {
	for _, p := range n.pointers {
		if p.cache != nil && (p.dirty || !p.Link.Defined()) {
			c, err := p.cache.Flush(ctx)
			if err != nil {
				return cid.Undef, err
			}
			p.Link = c
			p.dirty = false
		}
	}
	data, err := codec.Encode(n)
	if err != nil {
		return cid.Undef, err
	}
	return n.store.Put(ctx, store.CodecDagCBOR, data)
}

// ForEach visits every entry in key-hash order. Values are passed as raw
// encoded bytes.
func (n *Node) ForEach(ctx context.Context, cb func(k []byte, v *codec.Deferred) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range n.pointers {
		if p.isShard() {
			child, err := p.loadChild(ctx, n.store, n.bitWidth)
			if err != nil {
				return err
			}
			if err := child.ForEach(ctx, cb); err != nil {
				return err
			}
			continue
		}
		for _, kv := range p.KVs {
			if err := cb(kv.Key, kv.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParallelForEach visits every entry, walking top-level subtrees concurrently
// with up to workers goroutines. The callback must be safe for concurrent
// use; visit order is unspecified.
func (n *Node) ParallelForEach(ctx context.Context, workers int, cb func(k []byte, v *codec.Deferred) error) error {
	if workers <= 1 {
		return n.ForEach(ctx, cb)
	}
	sem := make(chan struct{}, workers)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range n.pointers {
		p := p
		if !p.isShard() {
			for _, kv := range p.KVs {
				if err := cb(kv.Key, kv.Value); err != nil {
					// cancel and drain in-flight subtree walks; the callback
					// must not run again after we return
					g.Go(func() error { return err })
					return g.Wait()
				}
			}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return g.Wait()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			child, err := p.loadChild(gctx, n.store, n.bitWidth)
			if err != nil {
				return err
			}
			return child.ForEach(gctx, cb)
		})
	}
	return g.Wait()
}
