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

// Package multisig reads multisig wallet actors: signer sets, approval
// thresholds, vesting of the initial balance and the pending transaction
// table.
package multisig

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

const (
	pendingTxnBitWidth = 5
	maxSigners         = 256
)

// TxnID identifies a pending transaction.
type TxnID int64

// Transaction is one pending proposal awaiting approvals.
type Transaction struct {
	To       address.Address
	Value    abi.TokenAmount
	Method   abi.MethodNum
	Params   []byte
	Approved []address.Address
}

func (t *Transaction) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(5)
	t.To = abi.ReadAddr(r)
	t.Value.UnmarshalCBOR(r)
	t.Method = abi.MethodNum(r.ReadUint64())
	t.Params = r.ReadBytes(codec.MaxByteFieldLength)
	t.Approved = abi.ReadAddrSlice(r, maxSigners)
}

func (t *Transaction) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(5)
	abi.WriteAddr(w, t.To)
	t.Value.MarshalCBOR(w)
	w.WriteUint64(uint64(t.Method))
	w.WriteBytes(t.Params)
	abi.WriteAddrSlice(w, t.Approved)
}

// State accesses one multisig actor's state.
type State interface {
	Version() actors.Version
	Signers() ([]address.Address, error)
	Threshold() (uint64, error)
	InitialBalance() (abi.TokenAmount, error)
	StartEpoch() (abi.ChainEpoch, error)
	UnlockDuration() (abi.ChainEpoch, error)
	// LockedBalance returns the still-vesting part of the initial balance at
	// the given epoch.
	LockedBalance(epoch abi.ChainEpoch) (abi.TokenAmount, error)
	ForEachPendingTxn(ctx context.Context, cb func(id TxnID, txn Transaction) error) error
	CheckInvariants(ctx context.Context) error
}

// Load decodes the multisig state rooted at root under bundle version v.
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

	signers        []address.Address
	threshold      uint64
	nextTxnID      int64
	initialBalance big.Int
	startEpoch     int64
	unlockDuration int64
	pendingTxns    cid.Cid
}

func (st *state) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(7)
	st.signers = abi.ReadAddrSlice(r, maxSigners)
	st.threshold = r.ReadUint64()
	st.nextTxnID = r.ReadInt64()
	st.initialBalance.UnmarshalCBOR(r)
	st.startEpoch = r.ReadInt64()
	st.unlockDuration = r.ReadInt64()
	st.pendingTxns = r.ReadCid()
}

func (st *state) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(7)
	abi.WriteAddrSlice(w, st.signers)
	w.WriteUint64(st.threshold)
	w.WriteInt64(st.nextTxnID)
	st.initialBalance.MarshalCBOR(w)
	w.WriteInt64(st.startEpoch)
	w.WriteInt64(st.unlockDuration)
	w.WriteCid(st.pendingTxns)
}

func (st *state) Version() actors.Version {
	return st.version
}

func (st *state) Signers() ([]address.Address, error) {
	out := make([]address.Address, len(st.signers))
	copy(out, st.signers)
	return out, nil
}

func (st *state) Threshold() (uint64, error) {
	return st.threshold, nil
}

func (st *state) InitialBalance() (abi.TokenAmount, error) {
	return st.initialBalance, nil
}

func (st *state) StartEpoch() (abi.ChainEpoch, error) {
	return abi.ChainEpoch(st.startEpoch), nil
}

func (st *state) UnlockDuration() (abi.ChainEpoch, error) {
	return abi.ChainEpoch(st.unlockDuration), nil
}

func (st *state) LockedBalance(epoch abi.ChainEpoch) (abi.TokenAmount, error) {
	if st.unlockDuration == 0 {
		return big.Zero(), nil
	}
	elapsed := int64(epoch) - st.startEpoch
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= st.unlockDuration {
		return big.Zero(), nil
	}
	remaining := big.NewInt(st.unlockDuration - elapsed)
	locked := big.Mul(st.initialBalance, remaining)
	return big.Int{Int: locked.Div(locked.Int, big.NewInt(st.unlockDuration).Int)}, nil
}

func (st *state) ForEachPendingTxn(ctx context.Context, cb func(id TxnID, txn Transaction) error) error {
	m, err := adt.AsMap(ctx, st.store, st.pendingTxns, pendingTxnBitWidth)
	if err != nil {
		return err
	}
	return m.ForEach(ctx, func(k []byte, d *codec.Deferred) error {
		id, err := parseTxnKey(k)
		if err != nil {
			return err
		}
		var txn Transaction
		if err := codec.Decode(d.Raw, &txn); err != nil {
			return err
		}
		return cb(id, txn)
	})
}

func parseTxnKey(k []byte) (TxnID, error) {
	v, err := abi.ParseUIntKey(k)
	if err != nil {
		return 0, err
	}
	// undo the zigzag applied by the signed key form
	return TxnID(int64(v>>1) ^ -int64(v&1)), nil
}

func (st *state) CheckInvariants(ctx context.Context) error {
	if st.threshold == 0 {
		return actors.Violation(actors.KindMultisig, "zero approval threshold")
	}
	if st.threshold > uint64(len(st.signers)) {
		return actors.Violation(actors.KindMultisig, "threshold %d exceeds %d signers", st.threshold, len(st.signers))
	}
	return st.ForEachPendingTxn(ctx, func(id TxnID, txn Transaction) error {
		if int64(id) >= st.nextTxnID {
			return actors.Violation(actors.KindMultisig, "pending txn %d at or past counter %d", id, st.nextTxnID)
		}
		if len(txn.Approved) == 0 {
			return actors.Violation(actors.KindMultisig, "pending txn %d has no approvals", id)
		}
		if len(txn.Approved) > len(st.signers) {
			return actors.Violation(actors.KindMultisig, "pending txn %d has more approvals than signers", id)
		}
		return nil
	})
}
