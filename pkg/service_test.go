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
	"sync"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/testhelpers"
)

// newTestService assembles a three-actor world: the system actor at f00, a
// healthy account at f0100, and an account at f0101 whose pubkey address
// carries the wrong protocol so its invariant check fails.
func newTestService(t *testing.T, ctx context.Context) *Service {
	t.Helper()

	b, err := testhelpers.NewTreeBuilder(ctx, actors.V11)
	require.NoError(t, err)

	pubkey, err := address.NewSecp256k1Address([]byte("service test account"))
	require.NoError(t, err)
	w := codec.NewWriter()
	w.WriteArray(1)
	abi.WriteAddr(w, pubkey)
	head, err := b.PutRaw(ctx, w)
	require.NoError(t, err)
	require.NoError(t, b.SetActor(ctx, 100, actors.KindAccount, head, abi.NewTokenAmount(5000)))

	w = codec.NewWriter()
	w.WriteArray(1)
	abi.WriteAddr(w, testhelpers.IDAddress(101))
	badHead, err := b.PutRaw(ctx, w)
	require.NoError(t, err)
	require.NoError(t, b.SetActor(ctx, 101, actors.KindAccount, badHead, abi.NewTokenAmount(0)))

	root, err := b.Flush(ctx)
	require.NoError(t, err)

	reader, err := NewReaderFromStore(ctx, b.Store(), root, actors.V11)
	require.NoError(t, err)

	return NewService(reader, Config{
		ServiceWorkers:  1,
		WalkWorkers:     2,
		WorkerQueueSize: 2,
	})
}

func TestServiceActor(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	act, err := serv.Actor(ctx, "f0100")
	require.NoError(t, err)
	require.Equal(t, "f0100", act.Address)
	require.Equal(t, string(actors.KindAccount), act.Kind)
	require.Equal(t, "v11", act.Version)
	require.Equal(t, "5000", act.Balance)

	_, err = serv.Actor(ctx, "f0999")
	require.Error(t, err)

	_, err = serv.Actor(ctx, "not an address")
	require.Error(t, err)
}

func TestServiceListActors(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	list, err := serv.ListActors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// sorted by address string
	require.Equal(t, "f00", list[0].Address)
	require.Equal(t, "f0100", list[1].Address)
	require.Equal(t, "f0101", list[2].Address)
	require.Equal(t, string(actors.KindSystem), list[0].Kind)
}

func TestServiceActorState(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	st, err := serv.ActorState(ctx, "f0100")
	require.NoError(t, err)
	require.Equal(t, "f0100", st.Actor.Address)
	pk, ok := st.State["pubkeyAddress"].(string)
	require.True(t, ok)
	require.NotEmpty(t, pk)

	// the system summary exposes the manifest the registry was fed from
	sys, err := serv.ActorState(ctx, "f00")
	require.NoError(t, err)
	manifest, ok := sys.State["builtinActors"].(string)
	require.True(t, ok)
	require.NotEmpty(t, manifest)
}

func TestServiceCheckActor(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	report, err := serv.CheckActor(ctx, "f0100")
	require.NoError(t, err)
	require.True(t, report.Ok)
	require.Empty(t, report.Violation)

	report, err = serv.CheckActor(ctx, "f0101")
	require.NoError(t, err)
	require.False(t, report.Ok)
	require.NotEmpty(t, report.Violation)
	require.Equal(t, "f0101", report.Address)
}

func TestServiceValidate(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	// a full walk checks every actor and reports only the broken one
	report, err := serv.Validate(ctx, ValidateRequest{})
	require.NoError(t, err)
	require.Equal(t, 3, report.Checked)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "f0101", report.Failures[0].Address)

	report, err = serv.Validate(ctx, ValidateRequest{Addresses: []string{"f0100"}})
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Empty(t, report.Failures)

	_, err = serv.Validate(ctx, ValidateRequest{Addresses: []string{"bogus"}})
	require.Error(t, err)
}

func TestServiceQueueBounded(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)
	serv.queue = newValidateQueue(1)

	// no workers running, so the second push must hit the bound
	require.NoError(t, serv.QueueValidation(ValidateRequest{}))
	require.ErrorIs(t, serv.QueueValidation(ValidateRequest{}), errQueueFull)
}

func TestServiceLoopLifecycle(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)
	serv.config.PreRuns = []ValidateRequest{{Addresses: []string{"f0100"}}}

	var wg sync.WaitGroup
	require.NoError(t, serv.Loop(&wg))
	require.NoError(t, serv.QueueValidation(ValidateRequest{}))
	require.NoError(t, serv.Stop())
	wg.Wait()
}

func TestServiceMarketBalanceWithoutMarket(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	// no market actor installed at f05
	_, err := serv.MarketBalance(ctx, "f0100")
	require.Error(t, err)
	_, err = serv.MinerPower(ctx, "f0100")
	require.Error(t, err)
}

func TestServiceAPIs(t *testing.T) {
	ctx := context.Background()
	serv := newTestService(t, ctx)

	apis := serv.APIs()
	require.Len(t, apis, 1)
	require.Equal(t, APIName, apis[0].Namespace)
	require.NotNil(t, apis[0].Service)
}
