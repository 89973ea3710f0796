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

// Package builtin dispatches an on-chain actor record to the schema package
// for its family and bundle version. Callers that need family-specific
// accessors type-assert the returned State to the subpackage interface, e.g.
// miner.State.
package builtin

import (
	"context"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/account"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/cron"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/datacap"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/eam"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/ethaccount"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/evm"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/init_"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/market"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/miner"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/multisig"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/paych"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/power"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/reward"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/system"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/verifreg"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// State is the part of every actor schema the dispatcher can promise.
type State interface {
	Version() actors.Version
	CheckInvariants(ctx context.Context) error
}

// Load resolves the actor's code address through the registry and decodes its
// head with the schema frozen for that (kind, version) pair.
func Load(ctx context.Context, s store.Store, reg actors.Registry, act *actors.Actor) (State, actors.Kind, error) {
	kind, v, ok := reg.Lookup(act.Code)
	if !ok {
		return nil, "", &actors.UnknownCodeError{Code: act.Code}
	}
	st, err := loadKind(ctx, s, kind, v, act)
	if err != nil {
		return nil, kind, err
	}
	return st, kind, nil
}

func loadKind(ctx context.Context, s store.Store, kind actors.Kind, v actors.Version, act *actors.Actor) (State, error) {
	switch kind {
	case actors.KindAccount:
		return account.Load(ctx, s, v, act.Head)
	case actors.KindCron:
		return cron.Load(ctx, s, v, act.Head)
	case actors.KindInit:
		return init_.Load(ctx, s, v, act.Head)
	case actors.KindMarket:
		return market.Load(ctx, s, v, act.Head)
	case actors.KindMiner:
		return miner.Load(ctx, s, v, act.Head)
	case actors.KindMultisig:
		return multisig.Load(ctx, s, v, act.Head)
	case actors.KindPaych:
		return paych.Load(ctx, s, v, act.Head)
	case actors.KindPower:
		return power.Load(ctx, s, v, act.Head)
	case actors.KindReward:
		return reward.Load(ctx, s, v, act.Head)
	case actors.KindSystem:
		return system.Load(ctx, s, v, act.Head)
	case actors.KindVerifreg:
		return verifreg.Load(ctx, s, v, act.Head)
	case actors.KindDatacap:
		return datacap.Load(ctx, s, v, act.Head)
	case actors.KindEVM:
		return evm.Load(ctx, s, v, act.Head)
	case actors.KindEthAccount:
		return ethaccount.Load(ctx, s, v, act.Head)
	case actors.KindEam:
		return eam.Load(ctx, s, v, act.Head)
	case actors.KindPlaceholder:
		return loadPlaceholder(ctx, s, v, act)
	default:
		return nil, actors.Violation(kind, "no schema for family %q", kind)
	}
}

// placeholderState covers actors that only hold a balance until real code
// takes the address over. The head must be the empty tuple.
type placeholderState struct {
	version actors.Version
}

func loadPlaceholder(ctx context.Context, s store.Store, v actors.Version, act *actors.Actor) (State, error) {
	if v < actors.V10 {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}
	data, err := store.Resolve(ctx, s, act.Head)
	if err != nil {
		return nil, err
	}
	if len(data) != 1 || data[0] != 0x80 {
		return nil, actors.Violation(actors.KindPlaceholder, "placeholder head is not the empty tuple")
	}
	return &placeholderState{version: v}, nil
}

func (st *placeholderState) Version() actors.Version {
	return st.version
}

func (st *placeholderState) CheckInvariants(ctx context.Context) error {
	return nil
}
