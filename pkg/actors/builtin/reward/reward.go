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

// Package reward reads the reward actor: the minting state, baseline power
// function values and the smoothed per-epoch reward estimate.
package reward

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/smoothing"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// State accesses the reward actor's state.
type State interface {
	Version() actors.Version
	ThisEpochReward() (abi.TokenAmount, error)
	ThisEpochRewardSmoothed() (smoothing.FilterEstimate, error)
	ThisEpochBaselinePower() (abi.StoragePower, error)
	EffectiveBaselinePower() (abi.StoragePower, error)
	Epoch() (abi.ChainEpoch, error)
	TotalStoragePowerReward() (abi.TokenAmount, error)
	CumsumBaseline() (abi.Spacetime, error)
	CumsumRealized() (abi.Spacetime, error)
	CheckInvariants(ctx context.Context) error
}

// Load decodes the reward state rooted at root under bundle version v.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}
	data, err := store.Resolve(ctx, s, root)
	if err != nil {
		return nil, err
	}
	st := &state{version: v}
	if err := codec.Decode(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

type state struct {
	version actors.Version

	cumsumBaseline          big.Int
	cumsumRealized          big.Int
	effectiveNetworkTime    int64
	effectiveBaselinePower  big.Int
	thisEpochReward         big.Int
	thisEpochRewardSmoothed smoothing.FilterEstimate
	thisEpochBaselinePower  big.Int
	epoch                   int64
	totalStoragePowerReward big.Int
	simpleTotal             big.Int
	baselineTotal           big.Int
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(11)
	st.cumsumBaseline.UnmarshalCBOR(r)
	st.cumsumRealized.UnmarshalCBOR(r)
	st.effectiveNetworkTime = r.ReadInt64()
	st.effectiveBaselinePower.UnmarshalCBOR(r)
	st.thisEpochReward.UnmarshalCBOR(r)
	st.thisEpochRewardSmoothed.UnmarshalCBOR(r)
	st.thisEpochBaselinePower.UnmarshalCBOR(r)
	st.epoch = r.ReadInt64()
	st.totalStoragePowerReward.UnmarshalCBOR(r)
	st.simpleTotal.UnmarshalCBOR(r)
	st.baselineTotal.UnmarshalCBOR(r)
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(11)
	st.cumsumBaseline.MarshalCBOR(w)
	st.cumsumRealized.MarshalCBOR(w)
	w.WriteInt64(st.effectiveNetworkTime)
	st.effectiveBaselinePower.MarshalCBOR(w)
	st.thisEpochReward.MarshalCBOR(w)
	st.thisEpochRewardSmoothed.MarshalCBOR(w)
	st.thisEpochBaselinePower.MarshalCBOR(w)
	w.WriteInt64(st.epoch)
	st.totalStoragePowerReward.MarshalCBOR(w)
	st.simpleTotal.MarshalCBOR(w)
	st.baselineTotal.MarshalCBOR(w)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) ThisEpochReward() (abi.TokenAmount, error) {
	return st.thisEpochReward, nil
}

func (st *state) ThisEpochRewardSmoothed() (smoothing.FilterEstimate, error) {
	return st.thisEpochRewardSmoothed, nil
}

func (st *state) ThisEpochBaselinePower() (abi.StoragePower, error) {
	return st.thisEpochBaselinePower, nil
}

func (st *state) EffectiveBaselinePower() (abi.StoragePower, error) {
	return st.effectiveBaselinePower, nil
}

func (st *state) Epoch() (abi.ChainEpoch, error) {
	return abi.ChainEpoch(st.epoch), nil
}

func (st *state) TotalStoragePowerReward() (abi.TokenAmount, error) {
	return st.totalStoragePowerReward, nil
}

func (st *state) CumsumBaseline() (abi.Spacetime, error) {
	return st.cumsumBaseline, nil
}

func (st *state) CumsumRealized() (abi.Spacetime, error) {
	return st.cumsumRealized, nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if st.epoch < 0 {
		return actors.Violation(actors.KindReward, "negative epoch")
	}
	if st.thisEpochReward.LessThan(big.Zero()) {
		return actors.Violation(actors.KindReward, "negative epoch reward")
	}
	// realized spacetime can never outrun the baseline function
	if st.cumsumRealized.GreaterThan(st.cumsumBaseline) {
		return actors.Violation(actors.KindReward, "realized cumsum exceeds baseline cumsum")
	}
	if st.effectiveNetworkTime < 0 {
		return actors.Violation(actors.KindReward, "negative effective network time")
	}
	return nil
}
