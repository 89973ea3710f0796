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

package actors

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// Registry resolves code addresses to actor families and back. The mapping
// comes from bundle manifests found in the snapshot, so it needs no built-in
// table of code addresses.
type Registry interface {
	// Lookup resolves a code address to its family and bundle version.
	Lookup(code cid.Cid) (Kind, Version, bool)
	// Code resolves a family and bundle version to its code address.
	Code(kind Kind, v Version) (cid.Cid, bool)
}

type codeEntry struct {
	kind    Kind
	version Version
}

// ManifestRegistry is a Registry fed by AddManifest. Safe for concurrent use
// once populated.
type ManifestRegistry struct {
	mu     sync.RWMutex
	byCode map[cid.Cid]codeEntry
	byKind map[Version]map[Kind]cid.Cid
}

func NewManifestRegistry() *ManifestRegistry {
	return &ManifestRegistry{
		byCode: make(map[cid.Cid]codeEntry),
		byKind: make(map[Version]map[Kind]cid.Cid),
	}
}

// manifest is the persisted bundle manifest: a format version (always 1) and
// the address of the entry list.
type manifest struct {
	Format  uint64
	Entries cid.Cid
}

func (m *manifest) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	m.Format = r.ReadUint64()
	m.Entries = r.ReadCid()
}

// manifestEntry is one (name, code) pair of the entry list.
type manifestEntry struct {
	Name string
	Code cid.Cid
}

func (e *manifestEntry) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	e.Name = r.ReadString(256)
	e.Code = r.ReadCid()
}

type manifestEntries []manifestEntry

func (es *manifestEntries) UnmarshalCBOR(r *codec.Reader) {
	n := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if n > 64 {
		r.Fail(&codec.InvalidScalarError{Reason: "manifest entry list too long"})
		return
	}
	*es = make(manifestEntries, n)
	for i := range *es {
		(*es)[i].UnmarshalCBOR(r)
	}
}

// AddManifest loads the manifest addressed by c and registers its entries
// under bundle version v.
func (mr *ManifestRegistry) AddManifest(ctx context.Context, s store.Store, v Version, c cid.Cid) error {
	if !Supported(v) {
		return &UnsupportedVersionError{Version: v}
	}
	data, err := store.Resolve(ctx, s, c)
	if err != nil {
		return err
	}
	var mf manifest
	if err := codec.Decode(data, &mf); err != nil {
		return err
	}
	data, err = store.Resolve(ctx, s, mf.Entries)
	if err != nil {
		return err
	}
	var entries manifestEntries
	if err := codec.Decode(data, &entries); err != nil {
		return err
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.byKind[v] == nil {
		mr.byKind[v] = make(map[Kind]cid.Cid)
	}
	for _, e := range entries {
		kind := Kind(e.Name)
		mr.byCode[e.Code] = codeEntry{kind: kind, version: v}
		mr.byKind[v][kind] = e.Code
	}
	return nil
}

// Register adds a single (code, kind, version) triple. Tests and fixed tables
// use this directly.
func (mr *ManifestRegistry) Register(code cid.Cid, kind Kind, v Version) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.byCode[code] = codeEntry{kind: kind, version: v}
	if mr.byKind[v] == nil {
		mr.byKind[v] = make(map[Kind]cid.Cid)
	}
	mr.byKind[v][kind] = code
}

func (mr *ManifestRegistry) Lookup(code cid.Cid) (Kind, Version, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	e, ok := mr.byCode[code]
	return e.kind, e.version, ok
}

func (mr *ManifestRegistry) Code(kind Kind, v Version) (cid.Cid, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	c, ok := mr.byKind[v][kind]
	return c, ok
}
