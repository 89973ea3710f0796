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

// Wire types for the RPC surface. Addresses, CIDs and token amounts are
// rendered as their canonical strings.

// Actor is one actor record joined with its resolved family and version.
type Actor struct {
	Address          string `json:"address"`
	Kind             string `json:"kind"`
	Version          string `json:"version"`
	Code             string `json:"code"`
	Head             string `json:"head"`
	CallSeqNum       uint64 `json:"callSeqNum"`
	Balance          string `json:"balance"`
	DelegatedAddress string `json:"delegatedAddress,omitempty"`
}

// ActorState is an actor record plus a family-specific summary of its
// decoded head.
type ActorState struct {
	Actor Actor                  `json:"actor"`
	State map[string]interface{} `json:"state"`
}

// MinerInfo summarises a miner's static configuration.
type MinerInfo struct {
	Owner                      string   `json:"owner"`
	Worker                     string   `json:"worker"`
	ControlAddresses           []string `json:"controlAddresses,omitempty"`
	PeerID                     string   `json:"peerId"`
	WindowPoStProofType        int64    `json:"windowPoStProofType"`
	SectorSize                 uint64   `json:"sectorSize"`
	WindowPoStPartitionSectors uint64   `json:"windowPoStPartitionSectors"`
	Beneficiary                string   `json:"beneficiary,omitempty"`
}

// MinerPower is one miner's claim against the network totals.
type MinerPower struct {
	RawBytePower         string `json:"rawBytePower"`
	QualityAdjPower      string `json:"qualityAdjPower"`
	TotalRawBytePower    string `json:"totalRawBytePower"`
	TotalQualityAdjPower string `json:"totalQualityAdjPower"`
	HasClaim             bool   `json:"hasClaim"`
}

// MarketBalance is one address's market escrow and locked amounts.
type MarketBalance struct {
	Escrow string `json:"escrow"`
	Locked string `json:"locked"`
}

// CheckReport is the outcome of one actor's invariant run.
type CheckReport struct {
	Address   string `json:"address"`
	Kind      string `json:"kind"`
	Version   string `json:"version"`
	Ok        bool   `json:"ok"`
	Violation string `json:"violation,omitempty"`
}

// ValidateRequest asks for invariant checks over some or all actors.
type ValidateRequest struct {
	// Addresses limits the run; empty means every actor in the tree.
	Addresses []string `json:"addresses,omitempty"`
}

// ValidateReport aggregates a validation run.
type ValidateReport struct {
	Checked  int           `json:"checked"`
	Failures []CheckReport `json:"failures,omitempty"`
}
