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
)

// APIName is the namespace used for the state reading service API
const APIName = "fil"

// APIVersion is the version of the state reading service API
const APIVersion = "0.0.1"

// PublicStateReaderAPI is the RPC interface over a loaded snapshot.
type PublicStateReaderAPI struct {
	srs IService
}

// NewPublicStateReaderAPI creates an RPC interface for the underlying service
func NewPublicStateReaderAPI(srs IService) *PublicStateReaderAPI {
	return &PublicStateReaderAPI{srs: srs}
}

// Actor returns the actor record at the given address.
func (api *PublicStateReaderAPI) Actor(ctx context.Context, addr string) (*Actor, error) {
	return api.srs.Actor(ctx, addr)
}

// ActorState returns the actor record plus a summary of its decoded state.
func (api *PublicStateReaderAPI) ActorState(ctx context.Context, addr string) (*ActorState, error) {
	return api.srs.ActorState(ctx, addr)
}

// ListActors returns every actor in the state tree.
func (api *PublicStateReaderAPI) ListActors(ctx context.Context) ([]Actor, error) {
	return api.srs.ListActors(ctx)
}

// MinerInfo returns the static configuration of the miner at addr.
func (api *PublicStateReaderAPI) MinerInfo(ctx context.Context, addr string) (*MinerInfo, error) {
	return api.srs.MinerInfo(ctx, addr)
}

// MinerPower returns the miner's power claim and the network totals.
func (api *PublicStateReaderAPI) MinerPower(ctx context.Context, addr string) (*MinerPower, error) {
	return api.srs.MinerPower(ctx, addr)
}

// MarketBalance returns the market escrow and locked balances for addr.
func (api *PublicStateReaderAPI) MarketBalance(ctx context.Context, addr string) (*MarketBalance, error) {
	return api.srs.MarketBalance(ctx, addr)
}

// CheckActor runs the invariant checks of the actor at addr.
func (api *PublicStateReaderAPI) CheckActor(ctx context.Context, addr string) (*CheckReport, error) {
	return api.srs.CheckActor(ctx, addr)
}

// Validate runs a validation request synchronously.
func (api *PublicStateReaderAPI) Validate(ctx context.Context, req ValidateRequest) (*ValidateReport, error) {
	return api.srs.Validate(ctx, req)
}

// QueueValidation enqueues a validation request for the background workers.
func (api *PublicStateReaderAPI) QueueValidation(ctx context.Context, req ValidateRequest) error {
	return api.srs.QueueValidation(req)
}
