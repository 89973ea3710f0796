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
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
)

const (
	maxControlAddresses = 128
	maxMultiaddrs       = 32
	maxDealIDsPerSector = 512
	maxPeerIDLength     = 128
)

// Records whose layout changed across bundle versions carry a SchemaVersion
// selector; it must be set before decoding and is not persisted.

// PowerPair groups raw-byte and quality-adjusted power.
type PowerPair struct {
	Raw abi.StoragePower
	QA  abi.StoragePower
}

func (pp *PowerPair) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	pp.Raw.UnmarshalCBOR(r)
	pp.QA.UnmarshalCBOR(r)
}

func (pp *PowerPair) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	pp.Raw.MarshalCBOR(w)
	pp.QA.MarshalCBOR(w)
}

// WorkerKeyChange is a pending worker key rotation.
type WorkerKeyChange struct {
	NewWorker   address.Address
	EffectiveAt abi.ChainEpoch
}

func (wkc *WorkerKeyChange) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	wkc.NewWorker = abi.ReadAddr(r)
	wkc.EffectiveAt = abi.ChainEpoch(r.ReadInt64())
}

func (wkc *WorkerKeyChange) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	abi.WriteAddr(w, wkc.NewWorker)
	w.WriteInt64(int64(wkc.EffectiveAt))
}

// BeneficiaryTerm is the active beneficiary's quota; bundle version 9 on.
type BeneficiaryTerm struct {
	Quota      abi.TokenAmount
	UsedQuota  abi.TokenAmount
	Expiration abi.ChainEpoch
}

func (bt *BeneficiaryTerm) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(3)
	bt.Quota.UnmarshalCBOR(r)
	bt.UsedQuota.UnmarshalCBOR(r)
	bt.Expiration = abi.ChainEpoch(r.ReadInt64())
}

func (bt *BeneficiaryTerm) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(3)
	bt.Quota.MarshalCBOR(w)
	bt.UsedQuota.MarshalCBOR(w)
	w.WriteInt64(int64(bt.Expiration))
}

// PendingBeneficiaryChange is a proposed beneficiary rotation awaiting
// approvals.
type PendingBeneficiaryChange struct {
	NewBeneficiary        address.Address
	NewQuota              abi.TokenAmount
	NewExpiration         abi.ChainEpoch
	ApprovedByBeneficiary bool
	ApprovedByNominee     bool
}

func (pbc *PendingBeneficiaryChange) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(5)
	pbc.NewBeneficiary = abi.ReadAddr(r)
	pbc.NewQuota.UnmarshalCBOR(r)
	pbc.NewExpiration = abi.ChainEpoch(r.ReadInt64())
	pbc.ApprovedByBeneficiary = r.ReadBool()
	pbc.ApprovedByNominee = r.ReadBool()
}

func (pbc *PendingBeneficiaryChange) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(5)
	abi.WriteAddr(w, pbc.NewBeneficiary)
	pbc.NewQuota.MarshalCBOR(w)
	w.WriteInt64(int64(pbc.NewExpiration))
	w.WriteBool(pbc.ApprovedByBeneficiary)
	w.WriteBool(pbc.ApprovedByNominee)
}

// MinerInfo is the static configuration record behind State.Info. Version 9
// appended the beneficiary fields.
type MinerInfo struct {
	SchemaVersion actors.Version

	Owner                      address.Address
	Worker                     address.Address
	ControlAddresses           []address.Address
	PendingWorkerKey           *WorkerKeyChange
	PeerID                     []byte
	Multiaddrs                 [][]byte
	WindowPoStProofType        abi.RegisteredPoStProof
	SectorSize                 abi.SectorSize
	WindowPoStPartitionSectors uint64
	ConsensusFaultElapsed      abi.ChainEpoch
	PendingOwnerAddress        *address.Address

	// version 9 and up
	Beneficiary            address.Address
	BeneficiaryTerm        BeneficiaryTerm
	PendingBeneficiaryTerm *PendingBeneficiaryChange
}

func (mi *MinerInfo) UnmarshalCBOR(r *codec.Reader) {
	if mi.SchemaVersion == actors.V8 {
		r.ExpectArray(11)
	} else {
		r.ExpectArray(14)
	}
	mi.Owner = abi.ReadAddr(r)
	mi.Worker = abi.ReadAddr(r)
	mi.ControlAddresses = abi.ReadAddrSlice(r, maxControlAddresses)
	if r.PeekNull() {
		r.ReadNull()
	} else {
		mi.PendingWorkerKey = &WorkerKeyChange{}
		mi.PendingWorkerKey.UnmarshalCBOR(r)
	}
	mi.PeerID = r.ReadBytes(maxPeerIDLength)
	n := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if n > maxMultiaddrs {
		r.Fail(&codec.InvalidScalarError{Reason: "multiaddr list too long"})
		return
	}
	mi.Multiaddrs = make([][]byte, n)
	for i := range mi.Multiaddrs {
		mi.Multiaddrs[i] = r.ReadBytes(codec.MaxByteFieldLength)
	}
	mi.WindowPoStProofType = abi.RegisteredPoStProof(r.ReadInt64())
	mi.SectorSize = abi.SectorSize(r.ReadUint64())
	mi.WindowPoStPartitionSectors = r.ReadUint64()
	mi.ConsensusFaultElapsed = abi.ChainEpoch(r.ReadInt64())
	mi.PendingOwnerAddress = abi.ReadOptionalAddr(r)
	if mi.SchemaVersion == actors.V8 {
		return
	}
	mi.Beneficiary = abi.ReadAddr(r)
	mi.BeneficiaryTerm.UnmarshalCBOR(r)
	if r.PeekNull() {
		r.ReadNull()
	} else {
		mi.PendingBeneficiaryTerm = &PendingBeneficiaryChange{}
		mi.PendingBeneficiaryTerm.UnmarshalCBOR(r)
	}
}

func (mi *MinerInfo) MarshalCBOR(w *codec.Writer) {
	if mi.SchemaVersion == actors.V8 {
		w.WriteArray(11)
	} else {
		w.WriteArray(14)
	}
	abi.WriteAddr(w, mi.Owner)
	abi.WriteAddr(w, mi.Worker)
	abi.WriteAddrSlice(w, mi.ControlAddresses)
	if mi.PendingWorkerKey == nil {
		w.WriteNull()
	} else {
		mi.PendingWorkerKey.MarshalCBOR(w)
	}
	w.WriteBytes(mi.PeerID)
	w.WriteArray(uint64(len(mi.Multiaddrs)))
	for _, ma := range mi.Multiaddrs {
		w.WriteBytes(ma)
	}
	w.WriteInt64(int64(mi.WindowPoStProofType))
	w.WriteUint64(uint64(mi.SectorSize))
	w.WriteUint64(mi.WindowPoStPartitionSectors)
	w.WriteInt64(int64(mi.ConsensusFaultElapsed))
	abi.WriteOptionalAddr(w, mi.PendingOwnerAddress)
	if mi.SchemaVersion == actors.V8 {
		return
	}
	abi.WriteAddr(w, mi.Beneficiary)
	mi.BeneficiaryTerm.MarshalCBOR(w)
	if mi.PendingBeneficiaryTerm == nil {
		w.WriteNull()
	} else {
		mi.PendingBeneficiaryTerm.MarshalCBOR(w)
	}
}

// SectorOnChainInfo is one committed sector's record. Version 9 appended
// SimpleQAPower.
type SectorOnChainInfo struct {
	SchemaVersion actors.Version

	SectorNumber          abi.SectorNumber
	SealProof             abi.RegisteredSealProof
	SealedCID             cid.Cid
	DealIDs               []abi.DealID
	Activation            abi.ChainEpoch
	Expiration            abi.ChainEpoch
	DealWeight            abi.DealWeight
	VerifiedDealWeight    abi.DealWeight
	InitialPledge         abi.TokenAmount
	ExpectedDayReward     abi.TokenAmount
	ExpectedStoragePledge abi.TokenAmount
	ReplacedSectorAge     abi.ChainEpoch
	ReplacedDayReward     abi.TokenAmount
	SectorKeyCID          *cid.Cid

	// version 9 and up
	SimpleQAPower bool
}

func readDealIDs(r *codec.Reader) []abi.DealID {
	n := r.ReadArray()
	if r.Err() != nil {
		return nil
	}
	if n > maxDealIDsPerSector {
		r.Fail(&codec.InvalidScalarError{Reason: "deal ID list too long"})
		return nil
	}
	out := make([]abi.DealID, n)
	for i := range out {
		out[i] = abi.DealID(r.ReadUint64())
	}
	return out
}

func writeDealIDs(w *codec.Writer, ids []abi.DealID) {
	w.WriteArray(uint64(len(ids)))
	for _, id := range ids {
		w.WriteUint64(uint64(id))
	}
}

func (si *SectorOnChainInfo) UnmarshalCBOR(r *codec.Reader) {
	if si.SchemaVersion == actors.V8 {
		r.ExpectArray(14)
	} else {
		r.ExpectArray(15)
	}
	si.SectorNumber = abi.SectorNumber(r.ReadUint64())
	si.SealProof = abi.RegisteredSealProof(r.ReadInt64())
	si.SealedCID = r.ReadCid()
	si.DealIDs = readDealIDs(r)
	si.Activation = abi.ChainEpoch(r.ReadInt64())
	si.Expiration = abi.ChainEpoch(r.ReadInt64())
	si.DealWeight.UnmarshalCBOR(r)
	si.VerifiedDealWeight.UnmarshalCBOR(r)
	si.InitialPledge.UnmarshalCBOR(r)
	si.ExpectedDayReward.UnmarshalCBOR(r)
	si.ExpectedStoragePledge.UnmarshalCBOR(r)
	si.ReplacedSectorAge = abi.ChainEpoch(r.ReadInt64())
	si.ReplacedDayReward.UnmarshalCBOR(r)
	si.SectorKeyCID = r.ReadOptionalCid()
	if si.SchemaVersion != actors.V8 {
		si.SimpleQAPower = r.ReadBool()
	}
}

func (si *SectorOnChainInfo) MarshalCBOR(w *codec.Writer) {
	if si.SchemaVersion == actors.V8 {
		w.WriteArray(14)
	} else {
		w.WriteArray(15)
	}
	w.WriteUint64(uint64(si.SectorNumber))
	w.WriteInt64(int64(si.SealProof))
	w.WriteCid(si.SealedCID)
	writeDealIDs(w, si.DealIDs)
	w.WriteInt64(int64(si.Activation))
	w.WriteInt64(int64(si.Expiration))
	si.DealWeight.MarshalCBOR(w)
	si.VerifiedDealWeight.MarshalCBOR(w)
	si.InitialPledge.MarshalCBOR(w)
	si.ExpectedDayReward.MarshalCBOR(w)
	si.ExpectedStoragePledge.MarshalCBOR(w)
	w.WriteInt64(int64(si.ReplacedSectorAge))
	si.ReplacedDayReward.MarshalCBOR(w)
	w.WriteOptionalCid(si.SectorKeyCID)
	if si.SchemaVersion != actors.V8 {
		w.WriteBool(si.SimpleQAPower)
	}
}

// SectorPreCommitInfo is the parameters a precommit was made with. Version 9
// replaced the replace-sector fields with the unsealed CID.
type SectorPreCommitInfo struct {
	SchemaVersion actors.Version

	SealProof     abi.RegisteredSealProof
	SectorNumber  abi.SectorNumber
	SealedCID     cid.Cid
	SealRandEpoch abi.ChainEpoch
	DealIDs       []abi.DealID
	Expiration    abi.ChainEpoch

	// version 8 only
	ReplaceCapacity         bool
	ReplaceSectorDeadline   uint64
	ReplaceSectorPartition  uint64
	ReplaceSectorNumber     abi.SectorNumber

	// version 9 and up
	UnsealedCID *cid.Cid
}

func (pi *SectorPreCommitInfo) UnmarshalCBOR(r *codec.Reader) {
	if pi.SchemaVersion == actors.V8 {
		r.ExpectArray(10)
	} else {
		r.ExpectArray(7)
	}
	pi.SealProof = abi.RegisteredSealProof(r.ReadInt64())
	pi.SectorNumber = abi.SectorNumber(r.ReadUint64())
	pi.SealedCID = r.ReadCid()
	pi.SealRandEpoch = abi.ChainEpoch(r.ReadInt64())
	pi.DealIDs = readDealIDs(r)
	pi.Expiration = abi.ChainEpoch(r.ReadInt64())
	if pi.SchemaVersion == actors.V8 {
		pi.ReplaceCapacity = r.ReadBool()
		pi.ReplaceSectorDeadline = r.ReadUint64()
		pi.ReplaceSectorPartition = r.ReadUint64()
		pi.ReplaceSectorNumber = abi.SectorNumber(r.ReadUint64())
		return
	}
	pi.UnsealedCID = r.ReadOptionalCid()
}

func (pi *SectorPreCommitInfo) MarshalCBOR(w *codec.Writer) {
	if pi.SchemaVersion == actors.V8 {
		w.WriteArray(10)
	} else {
		w.WriteArray(7)
	}
	w.WriteInt64(int64(pi.SealProof))
	w.WriteUint64(uint64(pi.SectorNumber))
	w.WriteCid(pi.SealedCID)
	w.WriteInt64(int64(pi.SealRandEpoch))
	writeDealIDs(w, pi.DealIDs)
	w.WriteInt64(int64(pi.Expiration))
	if pi.SchemaVersion == actors.V8 {
		w.WriteBool(pi.ReplaceCapacity)
		w.WriteUint64(pi.ReplaceSectorDeadline)
		w.WriteUint64(pi.ReplaceSectorPartition)
		w.WriteUint64(uint64(pi.ReplaceSectorNumber))
		return
	}
	w.WriteOptionalCid(pi.UnsealedCID)
}

// SectorPreCommitOnChainInfo wraps a precommit with its deposit. Version 9
// dropped the deal weights.
type SectorPreCommitOnChainInfo struct {
	SchemaVersion actors.Version

	Info             SectorPreCommitInfo
	PreCommitDeposit abi.TokenAmount
	PreCommitEpoch   abi.ChainEpoch

	// version 8 only
	DealWeight         abi.DealWeight
	VerifiedDealWeight abi.DealWeight
}

func (pci *SectorPreCommitOnChainInfo) UnmarshalCBOR(r *codec.Reader) {
	if pci.SchemaVersion == actors.V8 {
		r.ExpectArray(5)
	} else {
		r.ExpectArray(3)
	}
	pci.Info.SchemaVersion = pci.SchemaVersion
	pci.Info.UnmarshalCBOR(r)
	pci.PreCommitDeposit.UnmarshalCBOR(r)
	pci.PreCommitEpoch = abi.ChainEpoch(r.ReadInt64())
	if pci.SchemaVersion == actors.V8 {
		pci.DealWeight.UnmarshalCBOR(r)
		pci.VerifiedDealWeight.UnmarshalCBOR(r)
	}
}

func (pci *SectorPreCommitOnChainInfo) MarshalCBOR(w *codec.Writer) {
	if pci.SchemaVersion == actors.V8 {
		w.WriteArray(5)
	} else {
		w.WriteArray(3)
	}
	pci.Info.SchemaVersion = pci.SchemaVersion
	pci.Info.MarshalCBOR(w)
	pci.PreCommitDeposit.MarshalCBOR(w)
	w.WriteInt64(int64(pci.PreCommitEpoch))
	if pci.SchemaVersion == actors.V8 {
		pci.DealWeight.MarshalCBOR(w)
		pci.VerifiedDealWeight.MarshalCBOR(w)
	}
}

// VestingFund is one scheduled release of locked funds.
type VestingFund struct {
	Epoch  abi.ChainEpoch
	Amount abi.TokenAmount
}

func (vf *VestingFund) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	vf.Epoch = abi.ChainEpoch(r.ReadInt64())
	vf.Amount.UnmarshalCBOR(r)
}

func (vf *VestingFund) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	w.WriteInt64(int64(vf.Epoch))
	vf.Amount.MarshalCBOR(w)
}

// VestingFunds is the vesting schedule, ascending by epoch.
type VestingFunds struct {
	Funds []VestingFund
}

func (v *VestingFunds) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(1)
	n := r.ReadArray()
	if r.Err() != nil {
		return
	}
	if n > codec.MaxArrayLength {
		r.Fail(&codec.InvalidScalarError{Reason: "vesting schedule too long"})
		return
	}
	v.Funds = make([]VestingFund, n)
	for i := range v.Funds {
		v.Funds[i].UnmarshalCBOR(r)
	}
}

func (v *VestingFunds) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(1)
	w.WriteArray(uint64(len(v.Funds)))
	for i := range v.Funds {
		v.Funds[i].MarshalCBOR(w)
	}
}

// LockedAt sums the funds still vesting at the given epoch.
func (v *VestingFunds) LockedAt(epoch abi.ChainEpoch) abi.TokenAmount {
	locked := big.Zero()
	for _, f := range v.Funds {
		if f.Epoch >= epoch {
			locked = big.Add(locked, f.Amount)
		}
	}
	return locked
}
