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

package statereader

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/system"
	"github.com/cerc-io/fil-state-service/pkg/prom"
	"github.com/cerc-io/fil-state-service/pkg/state"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// systemAddr is the system actor's well-known ID address, f00. Its state
// names the builtin-actors manifest the rest of the tree was written with.
var systemAddr = func() address.Address {
	a, err := address.NewIDAddress(0)
	if err != nil {
		panic(err)
	}
	return a
}()

// ReaderConfig holds the snapshot parameters.
type ReaderConfig struct {
	// SnapshotPath is the CAR file to load.
	SnapshotPath string
	// StateRoot overrides the snapshot's header root when set.
	StateRoot string
	// BundleVersion is the actors bundle version the snapshot was written
	// under (8..11).
	BundleVersion int
	// CacheSize is the block cache capacity in entries; 0 disables the
	// cache.
	CacheSize int
}

// SnapshotReader owns the layered store over one CAR snapshot, the state tree
// rooted in it, and the code registry bootstrapped from the system actor's
// manifest.
type SnapshotReader struct {
	store    store.Store
	tree     *state.Tree
	registry *actors.ManifestRegistry
	version  actors.Version
	root     cid.Cid
}

// NewSnapshotReader loads the snapshot, resolves the state root and
// bootstraps the registry.
func NewSnapshotReader(ctx context.Context, cfg ReaderConfig) (*SnapshotReader, error) {
	v := actors.Version(cfg.BundleVersion)
	if !actors.Supported(v) {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}

	carStore, err := store.OpenCAR(ctx, cfg.SnapshotPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading CAR snapshot")
	}

	var s store.Store = store.NewVerifiedStore(carStore)
	if cfg.CacheSize > 0 {
		cached, err := store.NewCachedStore(s, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		prom.RegisterCacheCollector("blocks", cached)
		s = cached
	}

	root, err := resolveRoot(cfg, carStore)
	if err != nil {
		return nil, err
	}

	sr, err := NewReaderFromStore(ctx, s, root, v)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"root":    root,
		"version": v,
		"blocks":  carStore.Len(),
	}).Info("snapshot ready")
	return sr, nil
}

// NewReaderFromStore builds a reader over an already-opened store: it loads
// the state tree at root and bootstraps the registry from the system actor.
func NewReaderFromStore(ctx context.Context, s store.Store, root cid.Cid, v actors.Version) (*SnapshotReader, error) {
	if !actors.Supported(v) {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}
	tree, err := state.LoadTree(ctx, s, root)
	if err != nil {
		return nil, errors.Wrapf(err, "loading state tree %s", root)
	}

	registry := actors.NewManifestRegistry()
	sysActor, found, err := tree.GetActor(ctx, systemAddr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving system actor")
	}
	if !found {
		return nil, fmt.Errorf("state tree %s has no system actor", root)
	}
	sys, err := system.Load(ctx, s, v, sysActor.Head)
	if err != nil {
		return nil, errors.Wrap(err, "decoding system actor state")
	}
	manifestCid, err := sys.BuiltinActors()
	if err != nil {
		return nil, err
	}
	if err := registry.AddManifest(ctx, s, v, manifestCid); err != nil {
		return nil, errors.Wrapf(err, "registering manifest %s", manifestCid)
	}

	return &SnapshotReader{
		store:    s,
		tree:     tree,
		registry: registry,
		version:  v,
		root:     root,
	}, nil
}

func resolveRoot(cfg ReaderConfig, carStore *store.CARStore) (cid.Cid, error) {
	if cfg.StateRoot != "" {
		return cid.Decode(cfg.StateRoot)
	}
	roots := carStore.Roots()
	if len(roots) == 0 {
		return cid.Undef, fmt.Errorf("snapshot %s has no header roots and no state root was given", cfg.SnapshotPath)
	}
	return roots[0], nil
}

// Store returns the layered block store.
func (sr *SnapshotReader) Store() store.Store {
	return sr.store
}

// Tree returns the loaded state tree.
func (sr *SnapshotReader) Tree() *state.Tree {
	return sr.tree
}

// Registry resolves actor code addresses to (kind, version).
func (sr *SnapshotReader) Registry() actors.Registry {
	return sr.registry
}

// Version is the configured bundle version.
func (sr *SnapshotReader) Version() actors.Version {
	return sr.version
}

// StateRoot is the root the tree was loaded at.
func (sr *SnapshotReader) StateRoot() cid.Cid {
	return sr.root
}
