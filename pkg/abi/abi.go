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

// Package abi holds the protocol-level scalar types shared by every actor
// schema, and the key-derivation helpers used to index the persisted maps.
package abi

import (
	"github.com/cerc-io/fil-state-service/pkg/big"
)

// ChainEpoch is a block height. Negative values are sentinels (e.g. an unset
// worker-change epoch).
type ChainEpoch int64

// ActorID is the numeric shorthand for an ID address.
type ActorID uint64

// MethodNum identifies a method on an actor.
type MethodNum uint64

// SectorNumber identifies a miner sector.
type SectorNumber uint64

// SectorSize is the amount of bytes a sector can hold.
type SectorSize uint64

// DealID identifies a storage market deal.
type DealID uint64

// AllocationID identifies a verified-registry allocation. Zero means "none".
type AllocationID uint64

// ClaimID identifies a verified-registry claim.
type ClaimID uint64

// PaddedPieceSize is the size of a piece, in bytes, after padding.
type PaddedPieceSize uint64

// RegisteredSealProof is the on-chain enumeration of seal proof types.
type RegisteredSealProof int64

// RegisteredPoStProof is the on-chain enumeration of PoSt proof types.
type RegisteredPoStProof int64

// TokenAmount is an amount of attoFIL.
type TokenAmount = big.Int

// StoragePower is an integer number of bytes of committed storage.
type StoragePower = big.Int

// DealWeight is the integral of deal size over deal duration.
type DealWeight = big.Int

// Spacetime is the integral of power over time.
type Spacetime = big.Int

func NewTokenAmount(v int64) TokenAmount {
	return big.NewInt(v)
}

func NewStoragePower(v int64) StoragePower {
	return big.NewInt(v)
}
