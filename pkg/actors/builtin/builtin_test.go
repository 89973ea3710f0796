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

package builtin

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/account"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
	"github.com/cerc-io/fil-state-service/pkg/testhelpers"
)

func TestDispatchAccount(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	reg := actors.NewManifestRegistry()
	code := testhelpers.CodeCid(actors.V11, actors.KindAccount)
	reg.Register(code, actors.KindAccount, actors.V11)

	pubkey, err := address.NewSecp256k1Address([]byte("dispatch account"))
	require.NoError(t, err)
	w := codec.NewWriter()
	w.WriteArray(1)
	abi.WriteAddr(w, pubkey)
	data, err := w.Bytes()
	require.NoError(t, err)
	head, err := s.Put(ctx, store.CodecDagCBOR, data)
	require.NoError(t, err)

	act := &actors.Actor{Code: code, Head: head, Balance: abi.NewTokenAmount(1)}
	st, kind, err := Load(ctx, s, reg, act)
	require.NoError(t, err)
	require.Equal(t, actors.KindAccount, kind)
	require.Equal(t, actors.V11, st.Version())
	require.NoError(t, st.CheckInvariants(ctx))

	acct, ok := st.(account.State)
	require.True(t, ok)
	got, err := acct.PubkeyAddress()
	require.NoError(t, err)
	require.Equal(t, pubkey, got)
}

func TestDispatchUnknownCode(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	reg := actors.NewManifestRegistry()

	act := &actors.Actor{
		Code:    testhelpers.CodeCid(actors.V11, actors.KindAccount),
		Balance: abi.NewTokenAmount(0),
	}
	_, _, err := Load(ctx, s, reg, act)
	var unknown *actors.UnknownCodeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, act.Code, unknown.Code)
}

// A version tag outside the supported set must fail before any decode is
// attempted; a nearest-version fallback would decode garbage silently.
func TestDispatchUnsupportedVersion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	reg := actors.NewManifestRegistry()
	code := testhelpers.CodeCid(actors.Version(12), actors.KindAccount)
	reg.Register(code, actors.KindAccount, actors.Version(12))

	// head deliberately absent from the store; the version gate must trip
	// before any fetch
	head, err := store.AddressOf(store.CodecDagCBOR, []byte("unfetched"))
	require.NoError(t, err)
	act := &actors.Actor{Code: code, Head: head, Balance: abi.NewTokenAmount(0)}

	_, _, err = Load(ctx, s, reg, act)
	var unsupported *actors.UnsupportedVersionError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, actors.Version(12), unsupported.Version)
}

func TestDispatchPlaceholder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	reg := actors.NewManifestRegistry()
	code := testhelpers.CodeCid(actors.V11, actors.KindPlaceholder)
	reg.Register(code, actors.KindPlaceholder, actors.V11)

	head, err := s.Put(ctx, store.CodecDagCBOR, []byte{0x80})
	require.NoError(t, err)
	act := &actors.Actor{Code: code, Head: head, Balance: abi.NewTokenAmount(7)}

	st, kind, err := Load(ctx, s, reg, act)
	require.NoError(t, err)
	require.Equal(t, actors.KindPlaceholder, kind)
	require.NoError(t, st.CheckInvariants(ctx))

	// any payload beyond the empty tuple is a violation
	badHead, err := s.Put(ctx, store.CodecDagCBOR, []byte{0x81, 0x01})
	require.NoError(t, err)
	act.Head = badHead
	_, _, err = Load(ctx, s, reg, act)
	var violation *actors.InvariantViolationError
	require.ErrorAs(t, err, &violation)
}
