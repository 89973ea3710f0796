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

// Package power reads the storage power actor: network power totals, the
// per-miner claim table and the cron event queue head.
package power

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/smoothing"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const claimsBitWidth = 5

// Claim is one miner's registered power.
type Claim struct {
	WindowPoStProofType abi.RegisteredPoStProof
	RawBytePower        abi.StoragePower
	QualityAdjPower     abi.StoragePower
}

func (c *Claim) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(3)
	c.WindowPoStProofType = abi.RegisteredPoStProof(r.ReadInt64())
	c.RawBytePower.UnmarshalCBOR(r)
	c.QualityAdjPower.UnmarshalCBOR(r)
}

func (c *Claim) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(3)
	w.WriteInt64(int64(c.WindowPoStProofType))
	c.RawBytePower.MarshalCBOR(w)
	c.QualityAdjPower.MarshalCBOR(w)
}

// State accesses the storage power actor's state.
type State interface {
	Version() actors.Version
	TotalRawBytePower() (abi.StoragePower, error)
	TotalQualityAdjPower() (abi.StoragePower, error)
	TotalBytesCommitted() (abi.StoragePower, error)
	TotalQABytesCommitted() (abi.StoragePower, error)
	TotalPledgeCollateral() (abi.TokenAmount, error)
	ThisEpochQAPowerSmoothed() (smoothing.FilterEstimate, error)
	MinerCount() (int64, error)
	MinerAboveMinPowerCount() (int64, error)
	MinerPower(ctx context.Context, miner address.Address) (*Claim, bool, error)
	ForEachClaim(ctx context.Context, cb func(miner address.Address, claim Claim) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the power state rooted at root under bundle version v.
func Load(ctx context.Context, s store.Store, v actors.Version, root cid.Cid) (State, error) {
	if !actors.Supported(v) {
		return nil, &actors.UnsupportedVersionError{Version: v}
	}
	data, err := store.Resolve(ctx, s, root)
	if err != nil {
		return nil, err
	}
	st := &state{version: v, store: s}
	if err := codec.Decode(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

type state struct {
	version actors.Version
	store   store.Store

	totalRawBytePower        big.Int
	totalBytesCommitted      big.Int
	totalQualityAdjPower     big.Int
	totalQABytesCommitted    big.Int
	totalPledgeCollateral    big.Int
	thisEpochRawBytePower    big.Int
	thisEpochQualityAdjPower big.Int
	thisEpochPledge          big.Int
	thisEpochQAPowerSmoothed smoothing.FilterEstimate
	minerCount               int64
	minerAboveMinPowerCount  int64
	cronEventQueue           cid.Cid
	firstCronEpoch           int64
	claims                   cid.Cid
	proofValidationBatch     *cid.Cid
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(15)
	st.totalRawBytePower.UnmarshalCBOR(r)
	st.totalBytesCommitted.UnmarshalCBOR(r)
	st.totalQualityAdjPower.UnmarshalCBOR(r)
	st.totalQABytesCommitted.UnmarshalCBOR(r)
	st.totalPledgeCollateral.UnmarshalCBOR(r)
	st.thisEpochRawBytePower.UnmarshalCBOR(r)
	st.thisEpochQualityAdjPower.UnmarshalCBOR(r)
	st.thisEpochPledge.UnmarshalCBOR(r)
	st.thisEpochQAPowerSmoothed.UnmarshalCBOR(r)
	st.minerCount = r.ReadInt64()
	st.minerAboveMinPowerCount = r.ReadInt64()
	st.cronEventQueue = r.ReadCid()
	st.firstCronEpoch = r.ReadInt64()
	st.claims = r.ReadCid()
	st.proofValidationBatch = r.ReadOptionalCid()
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(15)
	st.totalRawBytePower.MarshalCBOR(w)
	st.totalBytesCommitted.MarshalCBOR(w)
	st.totalQualityAdjPower.MarshalCBOR(w)
	st.totalQABytesCommitted.MarshalCBOR(w)
	st.totalPledgeCollateral.MarshalCBOR(w)
	st.thisEpochRawBytePower.MarshalCBOR(w)
	st.thisEpochQualityAdjPower.MarshalCBOR(w)
	st.thisEpochPledge.MarshalCBOR(w)
	st.thisEpochQAPowerSmoothed.MarshalCBOR(w)
	w.WriteInt64(st.minerCount)
	w.WriteInt64(st.minerAboveMinPowerCount)
	w.WriteCid(st.cronEventQueue)
	w.WriteInt64(st.firstCronEpoch)
	w.WriteCid(st.claims)
	w.WriteOptionalCid(st.proofValidationBatch)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) TotalRawBytePower() (abi.StoragePower, error) {
	return st.totalRawBytePower, nil
}

func (st *state) TotalQualityAdjPower() (abi.StoragePower, error) {
	return st.totalQualityAdjPower, nil
}

func (st *state) TotalBytesCommitted() (abi.StoragePower, error) {
	return st.totalBytesCommitted, nil
}

func (st *state) TotalQABytesCommitted() (abi.StoragePower, error) {
	return st.totalQABytesCommitted, nil
}

func (st *state) TotalPledgeCollateral() (abi.TokenAmount, error) {
	return st.totalPledgeCollateral, nil
}

func (st *state) ThisEpochQAPowerSmoothed() (smoothing.FilterEstimate, error) {
	return st.thisEpochQAPowerSmoothed, nil
}

func (st *state) MinerCount() (int64, error) {
	return st.minerCount, nil
}

func (st *state) MinerAboveMinPowerCount() (int64, error) {
	return st.minerAboveMinPowerCount, nil
}

func (st *state) MinerPower(ctx context.Context, miner address.Address) (*Claim, bool, error) {
	m, err := adt.AsMap(ctx, st.store, st.claims, claimsBitWidth)
	if err != nil {
		return nil, false, err
	}
	var claim Claim
	found, err := m.Get(ctx, abi.AddrKey(miner), &claim)
	if err != nil || !found {
		return nil, found, err
	}
	return &claim, true, nil
}

func (st *state) ForEachClaim(ctx context.Context, cb func(miner address.Address, claim Claim) error) error {
	m, err := adt.AsMap(ctx, st.store, st.claims, claimsBitWidth)
	if err != nil {
		return err
	}
	return m.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		a, err := abi.ParseAddrKey(k)
		if err != nil {
			return err
		}
		var claim Claim
		if err := codec.Decode(d.Raw, &claim); err != nil {
			return err
		}
		return cb(a, claim)
	})
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if st.minerCount < 0 || st.minerAboveMinPowerCount < 0 {
		return actors.Violation(actors.KindPower, "negative miner count")
	}
	if st.minerAboveMinPowerCount > st.minerCount {
		return actors.Violation(actors.KindPower, "%d miners above threshold out of %d total",
			st.minerAboveMinPowerCount, st.minerCount)
	}
	var claimCount int64
	rawSum, qaSum := big.Zero(), big.Zero()
	if err := st.ForEachClaim(ctx, func(miner address.Address, claim Claim) error {
		if claim.RawBytePower.LessThan(big.Zero()) || claim.QualityAdjPower.LessThan(big.Zero()) {
			return actors.Violation(actors.KindPower, "miner %s has negative power", miner)
		}
		claimCount++
		rawSum = big.Add(rawSum, claim.RawBytePower)
		qaSum = big.Add(qaSum, claim.QualityAdjPower)
		return nil
	}); err != nil {
		return err
	}
	if claimCount != st.minerCount {
		return actors.Violation(actors.KindPower, "%d claims for %d miners", claimCount, st.minerCount)
	}
	// committed totals are the raw sums over every claim
	if !rawSum.Equals(st.totalBytesCommitted) {
		return actors.Violation(actors.KindPower, "claims sum to %s raw bytes, committed total is %s",
			rawSum, st.totalBytesCommitted)
	}
	if !qaSum.Equals(st.totalQABytesCommitted) {
		return actors.Violation(actors.KindPower, "claims sum to %s QA bytes, committed total is %s",
			qaSum, st.totalQABytesCommitted)
	}
	return nil
}
