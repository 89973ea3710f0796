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

// Package adt wraps the trie and array engines in the collection API the
// actor schemas are written against.
package adt

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/amt"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/hamt"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// Map is a key/value collection rooted at a single address.
type Map struct {
	root  *hamt.Node
	store store.Store
}

// AsMap loads the map rooted at r. bitWidth must match the width the map was
// written with; it is a schema parameter.
func AsMap(ctx context.Context, s store.Store, r cid.Cid, bitWidth int) (*Map, error) {
	root, err := hamt.LoadNode(ctx, s, r, hamt.UseTreeBitWidth(bitWidth))
	if err != nil {
		return nil, err
	}
	return &Map{root: root, store: s}, nil
}

// MakeEmptyMap creates an empty map backed by s.
func MakeEmptyMap(s store.Store, bitWidth int) *Map {
	return &Map{root: hamt.NewNode(s, hamt.UseTreeBitWidth(bitWidth)), store: s}
}

// Root flushes pending updates and returns the map's address.
func (m *Map) Root(ctx context.Context) (cid.Cid, error) {
	return m.root.Flush(ctx)
}

// Get decodes the value at key k into out, reporting whether it was present.
func (m *Map) Get(ctx context.Context, k []byte, out codec.Unmarshaler) (bool, error) {
	return m.root.Find(ctx, k, out)
}

// Put stores v under key k.
func (m *Map) Put(ctx context.Context, k []byte, v codec.Marshaler) error {
	return m.root.Set(ctx, k, v)
}

// Delete removes key k, reporting whether it was present.
func (m *Map) Delete(ctx context.Context, k []byte) (bool, error) {
	return m.root.Delete(ctx, k)
}

// ForEach visits every entry. Values are passed as raw encoded bytes.
func (m *Map) ForEach(ctx context.Context, cb func(k []byte, v *codec.Deferred) error) error {
	return m.root.ForEach(ctx, cb)
}

// ParallelForEach visits every entry using up to workers goroutines. The
// callback must be safe for concurrent use.
func (m *Map) ParallelForEach(ctx context.Context, workers int, cb func(k []byte, v *codec.Deferred) error) error {
	return m.root.ParallelForEach(ctx, workers, cb)
}

// Array is an integer-indexed collection rooted at a single address.
type Array struct {
	root *amt.Root
}

// AsArray loads the array rooted at r. The bit width travels in the root, so
// no schema parameter is needed.
func AsArray(ctx context.Context, s store.Store, r cid.Cid) (*Array, error) {
	root, err := amt.LoadAMT(ctx, s, r)
	if err != nil {
		return nil, err
	}
	return &Array{root: root}, nil
}

// MakeEmptyArray creates an empty array backed by s.
func MakeEmptyArray(s store.Store, bitWidth uint) *Array {
	return &Array{root: amt.NewAMT(s, amt.UseTreeBitWidth(bitWidth))}
}

// Root flushes pending updates and returns the array's address.
func (a *Array) Root(ctx context.Context) (cid.Cid, error) {
	return a.root.Flush(ctx)
}

// Get decodes the value at index i into out, reporting whether it was set.
func (a *Array) Get(ctx context.Context, i uint64, out codec.Unmarshaler) (bool, error) {
	return a.root.Get(ctx, i, out)
}

// Set stores v at index i.
func (a *Array) Set(ctx context.Context, i uint64, v codec.Marshaler) error {
	return a.root.Set(ctx, i, v)
}

// AppendContinuous appends v at the index equal to the current length. Only
// meaningful for densely packed arrays.
func (a *Array) AppendContinuous(ctx context.Context, v codec.Marshaler) error {
	return a.root.Push(ctx, v)
}

// Delete clears index i, reporting whether it was set.
func (a *Array) Delete(ctx context.Context, i uint64) (bool, error) {
	return a.root.Delete(ctx, i)
}

// Length returns the number of set entries.
func (a *Array) Length() uint64 {
	return a.root.Count()
}

// ForEach visits every set entry in index order.
func (a *Array) ForEach(ctx context.Context, cb func(i uint64, v *codec.Deferred) error) error {
	return a.root.ForEach(ctx, cb)
}
