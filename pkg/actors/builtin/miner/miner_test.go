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

package miner

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/bitfield"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

func idAddr(t *testing.T, id uint64) address.Address {
	t.Helper()
	a, err := address.NewIDAddress(id)
	require.NoError(t, err)
	return a
}

func mustAnyCid(t *testing.T) cid.Cid {
	t.Helper()
	c, err := store.AddressOf(store.CodecDagCBOR, []byte("placeholder block"))
	require.NoError(t, err)
	return c
}

// minerFixture assembles a decodable miner state in memory.
type minerFixture struct {
	t   *testing.T
	ctx context.Context
	s   *store.MemoryStore
	v   actors.Version
	st  state
}

func (f *minerFixture) putMarshaler(v codec.Marshaler) cid.Cid {
	f.t.Helper()
	data, err := codec.Encode(v)
	require.NoError(f.t, err)
	c, err := f.s.Put(f.ctx, store.CodecDagCBOR, data)
	require.NoError(f.t, err)
	return c
}

func newMinerFixture(t *testing.T, ctx context.Context, v actors.Version) *minerFixture {
	s := store.NewMemoryStore()
	f := &minerFixture{t: t, ctx: ctx, s: s, v: v}

	info := &MinerInfo{
		SchemaVersion:              v,
		Owner:                      idAddr(t, 1000),
		Worker:                     idAddr(t, 1001),
		PeerID:                     []byte("peer-id"),
		WindowPoStProofType:        8,
		SectorSize:                 32 << 30,
		WindowPoStPartitionSectors: 2349,
		ConsensusFaultElapsed:      -1,
	}
	if v != actors.V8 {
		info.Beneficiary = idAddr(t, 1000)
		info.BeneficiaryTerm = BeneficiaryTerm{Quota: big.Zero(), UsedQuota: big.Zero()}
	}

	vesting := &VestingFunds{Funds: []VestingFund{
		{Epoch: 100, Amount: big.NewInt(10)},
		{Epoch: 200, Amount: big.NewInt(20)},
	}}

	sectors := adt.MakeEmptyArray(s, 5)
	for _, num := range []abi.SectorNumber{1, 2} {
		si := &SectorOnChainInfo{
			SchemaVersion: v,
			SectorNumber:  num,
			SealProof:     8,
			SealedCID:     f.putMarshaler(&VestingFunds{}), // any defined address
			Activation:    10,
			Expiration:    10000,
		}
		require.NoError(t, sectors.Set(ctx, abi.SectorKey(num), si))
	}
	sectorsRoot, err := sectors.Root(ctx)
	require.NoError(t, err)

	precommits := adt.MakeEmptyMap(s, precommitBitWidth)
	pci := &SectorPreCommitOnChainInfo{
		SchemaVersion: v,
		Info: SectorPreCommitInfo{
			SchemaVersion: v,
			SealProof:     8,
			SectorNumber:  3,
			SealedCID:     f.putMarshaler(&VestingFunds{}),
			SealRandEpoch: 5,
			Expiration:    9000,
		},
		PreCommitDeposit: big.NewInt(111),
		PreCommitEpoch:   7,
	}
	require.NoError(t, precommits.Put(ctx, abi.UIntKey(3), pci))
	precommitsRoot, err := precommits.Root(ctx)
	require.NoError(t, err)

	emptyArr, err := adt.MakeEmptyArray(s, 5).Root(ctx)
	require.NoError(t, err)
	emptyMap, err := adt.MakeEmptyMap(s, 5).Root(ctx)
	require.NoError(t, err)

	// deadline 0 holds the two committed sectors in one partition
	part := &Partition{
		Sectors:           bitfield.NewFromSet([]uint64{1, 2}),
		ExpirationsEpochs: emptyArr,
		EarlyTerminated:   emptyArr,
	}
	partitions := adt.MakeEmptyArray(s, 5)
	require.NoError(t, partitions.Set(ctx, 0, part))
	partitionsRoot, err := partitions.Root(ctx)
	require.NoError(t, err)

	var dls deadlines
	for i := range dls.due {
		dl := &Deadline{
			Partitions:                        emptyArr,
			ExpirationsEpochs:                 emptyArr,
			OptimisticPoStSubmissions:         emptyArr,
			SectorsSnapshot:                   emptyArr,
			PartitionsSnapshot:                emptyArr,
			OptimisticPoStSubmissionsSnapshot: emptyArr,
		}
		if i == 0 {
			dl.Partitions = partitionsRoot
			dl.LiveSectors = 2
			dl.TotalSectors = 2
		}
		dls.due[i] = f.putMarshaler(dl)
	}

	f.st = state{
		version:                    v,
		store:                      s,
		info:                       f.putMarshaler(info),
		vestingFunds:               f.putMarshaler(vesting),
		preCommittedSectors:        precommitsRoot,
		preCommittedSectorsCleanUp: emptyMap,
		allocatedSectors:           f.putMarshaler(bitfield.NewFromSet([]uint64{1, 2, 3})),
		sectors:                    sectorsRoot,
		provingPeriodStart:         1234,
		currentDeadline:            3,
		deadlines:                  f.putMarshaler(&dls),
	}
	return f
}

// load persists the assembled state record and decodes it back through Load.
func (f *minerFixture) load() State {
	root := f.putMarshaler(&f.st)
	st, err := Load(f.ctx, f.s, f.v, root)
	require.NoError(f.t, err)
	return st
}

func TestLoadAndAccessors(t *testing.T) {
	ctx := context.Background()
	st := newMinerFixture(t, ctx, actors.V11).load()

	require.Equal(t, actors.V11, st.Version())

	info, err := st.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, idAddr(t, 1000), info.Owner)
	require.Equal(t, idAddr(t, 1001), info.Worker)
	require.Equal(t, abi.SectorSize(32<<30), info.SectorSize)
	require.Equal(t, idAddr(t, 1000), info.Beneficiary)

	vf, err := st.VestingFunds(ctx)
	require.NoError(t, err)
	require.Len(t, vf.Funds, 2)
	require.Equal(t, "30", vf.LockedAt(0).String())
	require.Equal(t, "20", vf.LockedAt(150).String())
	require.Equal(t, "0", vf.LockedAt(300).String())

	pps, err := st.ProvingPeriodStart()
	require.NoError(t, err)
	require.Equal(t, abi.ChainEpoch(1234), pps)
	cd, err := st.CurrentDeadline()
	require.NoError(t, err)
	require.Equal(t, uint64(3), cd)

	num, err := st.NumSectors(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), num)

	si, found, err := st.GetSector(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, abi.ChainEpoch(10000), si.Expiration)

	_, found, err = st.GetSector(ctx, 99)
	require.NoError(t, err)
	require.False(t, found)

	pci, found, err := st.GetPrecommittedSector(ctx, 3)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "111", pci.PreCommitDeposit.String())

	allocated, err := st.AllocatedSectors(ctx)
	require.NoError(t, err)
	require.True(t, allocated.IsSet(3))
	require.False(t, allocated.IsSet(4))

	dl, err := st.LoadDeadline(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), dl.TotalSectors)
	n, err := dl.PartitionCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	p, found, err := dl.LoadPartition(ctx, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), p.LiveSectors().Count())

	_, err = st.LoadDeadline(ctx, WPoStPeriodDeadlines)
	require.Error(t, err)
}

func TestCheckInvariantsClean(t *testing.T) {
	ctx := context.Background()
	for _, v := range actors.SupportedVersions {
		st := newMinerFixture(t, ctx, v).load()
		require.NoError(t, st.CheckInvariants(ctx), "version %s", v)
	}
}

func TestCheckInvariantsViolations(t *testing.T) {
	ctx := context.Background()

	asViolation := func(err error) *actors.InvariantViolationError {
		t.Helper()
		require.Error(t, err)
		var v *actors.InvariantViolationError
		require.ErrorAs(t, err, &v)
		return v
	}

	t.Run("negative fee debt", func(t *testing.T) {
		f := newMinerFixture(t, ctx, actors.V11)
		f.st.feeDebt = big.NewInt(-1)
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("deadline index out of range", func(t *testing.T) {
		f := newMinerFixture(t, ctx, actors.V11)
		f.st.currentDeadline = WPoStPeriodDeadlines
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("vesting schedule out of order", func(t *testing.T) {
		f := newMinerFixture(t, ctx, actors.V11)
		f.st.vestingFunds = f.putMarshaler(&VestingFunds{Funds: []VestingFund{
			{Epoch: 200, Amount: big.NewInt(20)},
			{Epoch: 100, Amount: big.NewInt(10)},
		}})
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("sector missing from allocated bitfield", func(t *testing.T) {
		f := newMinerFixture(t, ctx, actors.V11)
		f.st.allocatedSectors = f.putMarshaler(bitfield.NewFromSet([]uint64{1}))
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("faults outside partition sectors", func(t *testing.T) {
		f := newMinerFixture(t, ctx, actors.V11)
		f.corruptPartition(func(p *Partition) {
			p.Faults = bitfield.NewFromSet([]uint64{9})
		})
		asViolation(f.load().CheckInvariants(ctx))
	})

	t.Run("live sector count mismatch", func(t *testing.T) {
		f := newMinerFixture(t, ctx, actors.V11)
		f.corruptPartition(func(p *Partition) {
			p.Terminated = bitfield.NewFromSet([]uint64{2})
		})
		asViolation(f.load().CheckInvariants(ctx))
	})
}

// corruptPartition rewrites deadline 0's single partition through mutate.
func (f *minerFixture) corruptPartition(mutate func(p *Partition)) {
	ctx, t := f.ctx, f.t

	var dls deadlines
	data, err := store.Resolve(ctx, f.s, f.st.deadlines)
	require.NoError(t, err)
	require.NoError(t, codec.Decode(data, &dls))

	dl := &Deadline{store: f.s}
	data, err = store.Resolve(ctx, f.s, dls.due[0])
	require.NoError(t, err)
	require.NoError(t, codec.Decode(data, dl))

	arr, err := adt.AsArray(ctx, f.s, dl.Partitions)
	require.NoError(t, err)
	var p Partition
	found, err := arr.Get(ctx, 0, &p)
	require.NoError(t, err)
	require.True(t, found)

	mutate(&p)
	require.NoError(t, arr.Set(ctx, 0, &p))
	dl.Partitions, err = arr.Root(ctx)
	require.NoError(t, err)
	dls.due[0] = f.putMarshaler(dl)
	f.st.deadlines = f.putMarshaler(&dls)
}

func TestSectorSchemaByVersion(t *testing.T) {
	v9 := &SectorOnChainInfo{
		SchemaVersion: actors.V9,
		SectorNumber:  7,
		SealProof:     8,
		SealedCID:     mustAnyCid(t),
		Activation:    1,
		Expiration:    2,
		SimpleQAPower: true,
	}
	data, err := codec.Encode(v9)
	require.NoError(t, err)

	out := &SectorOnChainInfo{SchemaVersion: actors.V9}
	require.NoError(t, codec.Decode(data, out))
	require.True(t, out.SimpleQAPower)

	// the same bytes are not a valid version 8 record
	out = &SectorOnChainInfo{SchemaVersion: actors.V8}
	require.Error(t, codec.Decode(data, out))
}

func TestPreCommitSchemaByVersion(t *testing.T) {
	v8 := &SectorPreCommitOnChainInfo{
		SchemaVersion: actors.V8,
		Info: SectorPreCommitInfo{
			SchemaVersion:   actors.V8,
			SealProof:       8,
			SectorNumber:    4,
			SealedCID:       mustAnyCid(t),
			ReplaceCapacity: true,
		},
		PreCommitDeposit: big.NewInt(5),
	}
	data, err := codec.Encode(v8)
	require.NoError(t, err)

	out := &SectorPreCommitOnChainInfo{SchemaVersion: actors.V8}
	require.NoError(t, codec.Decode(data, out))
	require.True(t, out.Info.ReplaceCapacity)

	out = &SectorPreCommitOnChainInfo{SchemaVersion: actors.V9}
	require.Error(t, codec.Decode(data, out))
}
