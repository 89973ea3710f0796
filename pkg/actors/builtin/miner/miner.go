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

// Package miner reads the storage miner actor: the static miner info, the
// sector and precommit tables, the vesting schedule and the 48-deadline
// proving window. Several of its records changed shape at bundle version 9,
// so decoding is version-conditioned throughout.
package miner

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/bitfield"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const precommitBitWidth = 5

// State accesses a storage miner actor's state.
type State interface {
	Version() actors.Version
	Info(ctx context.Context) (*MinerInfo, error)
	PreCommitDeposits() (abi.TokenAmount, error)
	LockedFunds() (abi.TokenAmount, error)
	FeeDebt() (abi.TokenAmount, error)
	InitialPledge() (abi.TokenAmount, error)
	VestingFunds(ctx context.Context) (*VestingFunds, error)
	ProvingPeriodStart() (abi.ChainEpoch, error)
	CurrentDeadline() (uint64, error)
	DeadlineCronActive() (bool, error)
	GetSector(ctx context.Context, num abi.SectorNumber) (*SectorOnChainInfo, bool, error)
	ForEachSector(ctx context.Context, cb func(info *SectorOnChainInfo) error) error
	NumSectors(ctx context.Context) (uint64, error)
	GetPrecommittedSector(ctx context.Context, num abi.SectorNumber) (*SectorPreCommitOnChainInfo, bool, error)
	ForEachPrecommittedSector(ctx context.Context, cb func(info *SectorPreCommitOnChainInfo) error) error
	// AllocatedSectors is the bitfield of sector numbers ever assigned,
	// terminated ones included.
	AllocatedSectors(ctx context.Context) (bitfield.BitField, error)
	LoadDeadline(ctx context.Context, idx uint64) (*Deadline, error)
	ForEachDeadline(ctx context.Context, cb func(idx uint64, dl *Deadline) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the miner state rooted at root under bundle version v.
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

	info                       cid.Cid
	preCommitDeposits          big.Int
	lockedFunds                big.Int
	vestingFunds               cid.Cid
	feeDebt                    big.Int
	initialPledge              big.Int
	preCommittedSectors        cid.Cid
	preCommittedSectorsCleanUp cid.Cid
	allocatedSectors           cid.Cid
	sectors                    cid.Cid
	provingPeriodStart         int64
	currentDeadline            uint64
	deadlines                  cid.Cid
	earlyTerminations          bitfield.BitField
	deadlineCronActive         bool
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(15)
	st.info = r.ReadCid()
	st.preCommitDeposits.UnmarshalCBOR(r)
	st.lockedFunds.UnmarshalCBOR(r)
	st.vestingFunds = r.ReadCid()
	st.feeDebt.UnmarshalCBOR(r)
	st.initialPledge.UnmarshalCBOR(r)
	st.preCommittedSectors = r.ReadCid()
	st.preCommittedSectorsCleanUp = r.ReadCid()
	st.allocatedSectors = r.ReadCid()
	st.sectors = r.ReadCid()
	st.provingPeriodStart = r.ReadInt64()
	st.currentDeadline = r.ReadUint64()
	st.deadlines = r.ReadCid()
	st.earlyTerminations.UnmarshalCBOR(r)
	st.deadlineCronActive = r.ReadBool()
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(15)
	w.WriteCid(st.info)
	st.preCommitDeposits.MarshalCBOR(w)
	st.lockedFunds.MarshalCBOR(w)
	w.WriteCid(st.vestingFunds)
	st.feeDebt.MarshalCBOR(w)
	st.initialPledge.MarshalCBOR(w)
	w.WriteCid(st.preCommittedSectors)
	w.WriteCid(st.preCommittedSectorsCleanUp)
	w.WriteCid(st.allocatedSectors)
	w.WriteCid(st.sectors)
	w.WriteInt64(st.provingPeriodStart)
	w.WriteUint64(st.currentDeadline)
	w.WriteCid(st.deadlines)
	st.earlyTerminations.MarshalCBOR(w)
	w.WriteBool(st.deadlineCronActive)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) Info(ctx context.Context) (*MinerInfo, error) {
	data, err := store.Resolve(ctx, st.store, st.info)
	if err != nil {
		return nil, err
	}
	mi := &MinerInfo{SchemaVersion: st.version}
	if err := codec.Decode(data, mi); err != nil {
		return nil, err
	}
	return mi, nil
}

func (st *state) PreCommitDeposits() (abi.TokenAmount, error) {
	return st.preCommitDeposits, nil
}

func (st *state) LockedFunds() (abi.TokenAmount, error) {
	return st.lockedFunds, nil
}

func (st *state) FeeDebt() (abi.TokenAmount, error) {
	return st.feeDebt, nil
}

func (st *state) InitialPledge() (abi.TokenAmount, error) {
	return st.initialPledge, nil
}

func (st *state) VestingFunds(ctx context.Context) (*VestingFunds, error) {
	data, err := store.Resolve(ctx, st.store, st.vestingFunds)
	if err != nil {
		return nil, err
	}
	vf := &VestingFunds{}
	if err := codec.Decode(data, vf); err != nil {
		return nil, err
	}
	return vf, nil
}

func (st *state) ProvingPeriodStart() (abi.ChainEpoch, error) {
	return abi.ChainEpoch(st.provingPeriodStart), nil
}

func (st *state) CurrentDeadline() (uint64, error) {
	return st.currentDeadline, nil
}

func (st *state) DeadlineCronActive() (bool, error) {
	return st.deadlineCronActive, nil
}

func (st *state) GetSector(ctx context.Context, num abi.SectorNumber) (*SectorOnChainInfo, bool, error) {
	arr, err := adt.AsArray(ctx, st.store, st.sectors)
	if err != nil {
		return nil, false, err
	}
	info := &SectorOnChainInfo{SchemaVersion: st.version}
	found, err := arr.Get(ctx, abi.SectorKey(num), info)
	if err != nil || !found {
		return nil, found, err
	}
	return info, true, nil
}

func (st *state) ForEachSector(ctx context.Context, cb func(info *SectorOnChainInfo) error) error {
	arr, err := adt.AsArray(ctx, st.store, st.sectors)
	if err != nil {
		return err
	}
	return arr.ForEach(ctx, func(i uint64, d *codec.Deferred) error {
		info := &SectorOnChainInfo{SchemaVersion: st.version}
		if err := codec.Decode(d.Raw, info); err != nil {
			return err
		}
		return cb(info)
	})
}

func (st *state) NumSectors(ctx context.Context) (uint64, error) {
	arr, err := adt.AsArray(ctx, st.store, st.sectors)
	if err != nil {
		return 0, err
	}
	return arr.Length(), nil
}

func (st *state) GetPrecommittedSector(ctx context.Context, num abi.SectorNumber) (*SectorPreCommitOnChainInfo, bool, error) {
	m, err := adt.AsMap(ctx, st.store, st.preCommittedSectors, precommitBitWidth)
	if err != nil {
		return nil, false, err
	}
	info := &SectorPreCommitOnChainInfo{SchemaVersion: st.version}
	found, err := m.Get(ctx, abi.UIntKey(uint64(num)), info)
	if err != nil || !found {
		return nil, found, err
	}
	return info, true, nil
}

func (st *state) ForEachPrecommittedSector(ctx context.Context, cb func(info *SectorPreCommitOnChainInfo) error) error {
	m, err := adt.AsMap(ctx, st.store, st.preCommittedSectors, precommitBitWidth)
	if err != nil {
		return err
	}
	return m.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		info := &SectorPreCommitOnChainInfo{SchemaVersion: st.version}
		if err := codec.Decode(d.Raw, info); err != nil {
			return err
		}
		return cb(info)
	})
}

func (st *state) AllocatedSectors(ctx context.Context) (bitfield.BitField, error) {
	data, err := store.Resolve(ctx, st.store, st.allocatedSectors)
	if err != nil {
		return bitfield.New(), err
	}
	var bf bitfield.BitField
	if err := codec.Decode(data, &bf); err != nil {
		return bitfield.New(), err
	}
	return bf, nil
}

func (st *state) loadDeadlines(ctx context.Context) (*deadlines, error) {
	data, err := store.Resolve(ctx, st.store, st.deadlines)
	if err != nil {
		return nil, err
	}
	d := &deadlines{}
	if err := codec.Decode(data, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (st *state) loadDeadline(ctx context.Context, root cid.Cid) (*Deadline, error) {
	data, err := store.Resolve(ctx, st.store, root)
	if err != nil {
		return nil, err
	}
	dl := &Deadline{store: st.store}
	if err := codec.Decode(data, dl); err != nil {
		return nil, err
	}
	return dl, nil
}

func (st *state) LoadDeadline(ctx context.Context, idx uint64) (*Deadline, error) {
	if idx >= WPoStPeriodDeadlines {
		return nil, actors.Violation(actors.KindMiner, "deadline index %d out of range", idx)
	}
	d, err := st.loadDeadlines(ctx)
	if err != nil {
		return nil, err
	}
	return st.loadDeadline(ctx, d.due[idx])
}

func (st *state) ForEachDeadline(ctx context.Context, cb func(idx uint64, dl *Deadline) error) error {
	d, err := st.loadDeadlines(ctx)
	if err != nil {
		return err
	}
	for i := range d.due {
		dl, err := st.loadDeadline(ctx, d.due[i])
		if err != nil {
			return err
		}
		if err := cb(uint64(i), dl); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	for _, f := range []struct {
		name string
		v    big.Int
	}{
		{"precommit deposits", st.preCommitDeposits},
		{"locked funds", st.lockedFunds},
		{"fee debt", st.feeDebt},
		{"initial pledge", st.initialPledge},
	} {
		if f.v.LessThan(big.Zero()) {
			return actors.Violation(actors.KindMiner, "negative %s", f.name)
		}
	}
	if st.currentDeadline >= WPoStPeriodDeadlines {
		return actors.Violation(actors.KindMiner, "current deadline %d out of range", st.currentDeadline)
	}

	// the vesting schedule must be sorted with positive amounts
	vf, err := st.VestingFunds(ctx)
	if err != nil {
		return err
	}
	for i, f := range vf.Funds {
		if f.Amount.LessThan(big.Zero()) {
			return actors.Violation(actors.KindMiner, "negative vesting amount at epoch %d", f.Epoch)
		}
		if i > 0 && f.Epoch <= vf.Funds[i-1].Epoch {
			return actors.Violation(actors.KindMiner, "vesting schedule out of order at epoch %d", f.Epoch)
		}
	}

	allocated, err := st.AllocatedSectors(ctx)
	if err != nil {
		return err
	}
	if err := st.ForEachSector(ctx, func(info *SectorOnChainInfo) error {
		if !allocated.IsSet(uint64(info.SectorNumber)) {
			return actors.Violation(actors.KindMiner, "sector %d not in the allocated bitfield", info.SectorNumber)
		}
		if info.Activation >= info.Expiration {
			return actors.Violation(actors.KindMiner, "sector %d expires at %d, activated at %d",
				info.SectorNumber, info.Expiration, info.Activation)
		}
		return nil
	}); err != nil {
		return err
	}

	return st.ForEachDeadline(ctx, func(idx uint64, dl *Deadline) error {
		var total, live uint64
		if err := dl.ForEachPartition(ctx, func(pidx uint64, p *Partition) error {
			if !bitfield.ContainsAll(p.Sectors, p.Faults) {
				return actors.Violation(actors.KindMiner, "deadline %d partition %d: faults outside sectors", idx, pidx)
			}
			if !bitfield.ContainsAll(p.Faults, p.Recoveries) {
				return actors.Violation(actors.KindMiner, "deadline %d partition %d: recoveries outside faults", idx, pidx)
			}
			if !bitfield.ContainsAll(p.Sectors, p.Terminated) {
				return actors.Violation(actors.KindMiner, "deadline %d partition %d: terminated outside sectors", idx, pidx)
			}
			if !bitfield.ContainsAll(p.Sectors, p.Unproven) {
				return actors.Violation(actors.KindMiner, "deadline %d partition %d: unproven outside sectors", idx, pidx)
			}
			total += p.Sectors.Count()
			live += p.LiveSectors().Count()
			return nil
		}); err != nil {
			return err
		}
		if total != dl.TotalSectors {
			return actors.Violation(actors.KindMiner, "deadline %d: partitions hold %d sectors, record says %d",
				idx, total, dl.TotalSectors)
		}
		if live != dl.LiveSectors {
			return actors.Violation(actors.KindMiner, "deadline %d: partitions hold %d live sectors, record says %d",
				idx, live, dl.LiveSectors)
		}
		return nil
	})
}
