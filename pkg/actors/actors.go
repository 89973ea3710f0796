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

// Package actors defines the protocol-version and actor-kind enumerations,
// the on-chain actor record, and the registry that maps code addresses to
// (kind, version) pairs via the deployed actor-bundle manifests.
package actors

import (
	"fmt"
)

// Version is an actors bundle version. State schemas are frozen per version:
// a record written under one version decodes under that version forever.
type Version int

const (
	V8  Version = 8
	V9  Version = 9
	V10 Version = 10
	V11 Version = 11
)

// SupportedVersions lists every version this service can read, ascending.
var SupportedVersions = []Version{V8, V9, V10, V11}

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// Supported reports whether v is a readable version.
func Supported(v Version) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

// Kind names an actor family. The strings are the manifest entry names and
// are stable across versions.
type Kind string

const (
	KindAccount     Kind = "account"
	KindCron        Kind = "cron"
	KindInit        Kind = "init"
	KindMarket      Kind = "storagemarket"
	KindMiner       Kind = "storageminer"
	KindMultisig    Kind = "multisig"
	KindPaych       Kind = "paymentchannel"
	KindPower       Kind = "storagepower"
	KindReward      Kind = "reward"
	KindSystem      Kind = "system"
	KindVerifreg    Kind = "verifiedregistry"
	KindDatacap     Kind = "datacap"
	KindEVM         Kind = "evm"
	KindEam         Kind = "eam"
	KindEthAccount  Kind = "ethaccount"
	KindPlaceholder Kind = "placeholder"
)

// kindsByVersion lists the families each bundle version ships.
var kindsByVersion = map[Version][]Kind{
	V8: {KindAccount, KindCron, KindInit, KindMarket, KindMiner, KindMultisig,
		KindPaych, KindPower, KindReward, KindSystem, KindVerifreg},
	V9: {KindAccount, KindCron, KindInit, KindMarket, KindMiner, KindMultisig,
		KindPaych, KindPower, KindReward, KindSystem, KindVerifreg, KindDatacap},
	V10: {KindAccount, KindCron, KindInit, KindMarket, KindMiner, KindMultisig,
		KindPaych, KindPower, KindReward, KindSystem, KindVerifreg, KindDatacap,
		KindEVM, KindEam, KindEthAccount, KindPlaceholder},
	V11: {KindAccount, KindCron, KindInit, KindMarket, KindMiner, KindMultisig,
		KindPaych, KindPower, KindReward, KindSystem, KindVerifreg, KindDatacap,
		KindEVM, KindEam, KindEthAccount, KindPlaceholder},
}

// KindsForVersion returns the families version v ships, or nil if v is not
// supported.
func KindsForVersion(v Version) []Kind {
	return kindsByVersion[v]
}
