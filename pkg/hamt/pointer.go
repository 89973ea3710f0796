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

import (
	"bytes"
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// KV is one key/value entry in a leaf bucket. Values are kept as raw encoded
// bytes; interpretation belongs to the caller.
type KV struct {
	Key   []byte
	Value *codec.Deferred
}

func (kv *KV) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	w.WriteBytes(kv.Key)
	w.WriteRaw(kv.Value.Raw)
}

func (kv *KV) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	kv.Key = r.ReadBytes(maxKeyLength)
	kv.Value = &codec.Deferred{}
	kv.Value.UnmarshalCBOR(r)
}

// Pointer is one slot of an interior node: either a link to a child node or
// an inline bucket of up to bucketSize entries. On the wire the two shapes
// are a tag-42 link and an array, distinguished by major type.
type Pointer struct {
	KVs  []*KV
	Link cid.Cid

	// cached child node, loaded lazily; dirty marks an unflushed cache
	cache *Node
	dirty bool
}

func (p *Pointer) isShard() bool {
	return p.Link.Defined() || p.cache != nil
}

func (p *Pointer) MarshalCBOR(w *codec.Writer) {
	if p.isShard() {
		w.WriteCid(p.Link)
		return
	}
	w.WriteArray(uint64(len(p.KVs)))
	for _, kv := range p.KVs {
		kv.MarshalCBOR(w)
	}
}

func (p *Pointer) UnmarshalCBOR(r *codec.Reader) {
	maj, ok := r.PeekMajor()
	if !ok {
		// force the underlying truncation error
		r.ReadArray()
		return
	}
	if maj == 6 {
		p.Link = r.ReadCid()
		return
	}
	n := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if n > bucketSize {
		r.Fail(errOversizedBucket)
		return
	}
	p.KVs = make([]*KV, n)
	for i := range p.KVs {
		kv := &KV{}
		kv.UnmarshalCBOR(r)
		p.KVs[i] = kv
	}
}

// loadChild fetches and caches the pointed-to child node.
func (p *Pointer) loadChild(ctx context.Context, s store.Store, bitWidth int) (*Node, error) {
	if p.cache != nil {
		return p.cache, nil
	}
	child, err := LoadNode(ctx, s, p.Link, UseTreeBitWidth(bitWidth))
	if err != nil {
		return nil, err
	}
	p.cache = child
	return child, nil
}

// bucket invariants checked on decode
func validateBucket(kvs []*KV) error {
	if len(kvs) == 0 {
		return errEmptyBucket
	}
	for i := 1; i < len(kvs); i++ {
		if bytes.Compare(kvs[i-1].Key, kvs[i].Key) >= 0 {
			return errUnsortedBucket
		}
	}
	return nil
}
