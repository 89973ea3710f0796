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

package actors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/store"
	"github.com/cerc-io/fil-state-service/pkg/testhelpers"
)

func TestSupportedVersions(t *testing.T) {
	for _, v := range actors.SupportedVersions {
		require.True(t, actors.Supported(v))
	}
	require.False(t, actors.Supported(actors.Version(7)))
	require.False(t, actors.Supported(actors.Version(12)))
	require.Equal(t, "v8", actors.V8.String())
}

func TestKindsForVersion(t *testing.T) {
	v8 := actors.KindsForVersion(actors.V8)
	require.Contains(t, v8, actors.KindMiner)
	require.NotContains(t, v8, actors.KindEVM)

	v9 := actors.KindsForVersion(actors.V9)
	require.Contains(t, v9, actors.KindDatacap)
	require.NotContains(t, v9, actors.KindEVM)

	v10 := actors.KindsForVersion(actors.V10)
	require.Contains(t, v10, actors.KindEVM)
	require.Contains(t, v10, actors.KindEthAccount)
	require.Contains(t, v10, actors.KindEam)
	require.Contains(t, v10, actors.KindPlaceholder)
}

func TestAddManifest(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	manifest, err := testhelpers.WriteManifest(ctx, s, actors.V10)
	require.NoError(t, err)

	reg := actors.NewManifestRegistry()
	require.NoError(t, reg.AddManifest(ctx, s, actors.V10, manifest))

	minerCode := testhelpers.CodeCid(actors.V10, actors.KindMiner)
	kind, version, ok := reg.Lookup(minerCode)
	require.True(t, ok)
	require.Equal(t, actors.KindMiner, kind)
	require.Equal(t, actors.V10, version)

	code, ok := reg.Code(actors.KindMiner, actors.V10)
	require.True(t, ok)
	require.Equal(t, minerCode, code)

	// nothing registered for other versions
	_, ok = reg.Code(actors.KindMiner, actors.V8)
	require.False(t, ok)

	_, _, ok = reg.Lookup(testhelpers.CodeCid(actors.V8, actors.KindMiner))
	require.False(t, ok)
}

func TestAddManifestMultipleVersions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	reg := actors.NewManifestRegistry()

	for _, v := range actors.SupportedVersions {
		manifest, err := testhelpers.WriteManifest(ctx, s, v)
		require.NoError(t, err)
		require.NoError(t, reg.AddManifest(ctx, s, v, manifest))
	}

	for _, v := range actors.SupportedVersions {
		kind, version, ok := reg.Lookup(testhelpers.CodeCid(v, actors.KindMarket))
		require.True(t, ok)
		require.Equal(t, actors.KindMarket, kind)
		require.Equal(t, v, version)
	}
}

func TestAddManifestUnsupportedVersion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	reg := actors.NewManifestRegistry()

	manifest, err := testhelpers.WriteManifest(ctx, s, actors.V11)
	require.NoError(t, err)

	err = reg.AddManifest(ctx, s, actors.Version(12), manifest)
	var unsupported *actors.UnsupportedVersionError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, actors.Version(12), unsupported.Version)
}

func TestRegisterDirect(t *testing.T) {
	reg := actors.NewManifestRegistry()
	code := testhelpers.CodeCid(actors.V9, actors.KindPower)
	reg.Register(code, actors.KindPower, actors.V9)

	kind, version, ok := reg.Lookup(code)
	require.True(t, ok)
	require.Equal(t, actors.KindPower, kind)
	require.Equal(t, actors.V9, version)
}
