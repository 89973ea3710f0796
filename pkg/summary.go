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

	"github.com/cerc-io/fil-state-service/pkg/actors/builtin"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/account"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/cron"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/datacap"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/evm"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/init_"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/market"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/miner"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/multisig"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/paych"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/power"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/reward"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/system"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/verifreg"
)

// summarizeState flattens the family-specific accessors into one JSON-ready
// map. Families without interesting state (eam, ethaccount, placeholder)
// yield an empty map.
func summarizeState(ctx context.Context, st builtin.State) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	switch s := st.(type) {
	case account.State:
		pk, err := s.PubkeyAddress()
		if err != nil {
			return nil, err
		}
		out["pubkeyAddress"] = pk.String()

	case system.State:
		m, err := s.BuiltinActors()
		if err != nil {
			return nil, err
		}
		out["builtinActors"] = m.String()

	case cron.State:
		entries, err := s.Entries()
		if err != nil {
			return nil, err
		}
		out["entries"] = len(entries)

	case init_.State:
		name, err := s.NetworkName()
		if err != nil {
			return nil, err
		}
		next, err := s.NextID()
		if err != nil {
			return nil, err
		}
		out["networkName"] = name
		out["nextID"] = uint64(next)

	case multisig.State:
		signers, err := s.Signers()
		if err != nil {
			return nil, err
		}
		threshold, err := s.Threshold()
		if err != nil {
			return nil, err
		}
		out["signers"] = len(signers)
		out["threshold"] = threshold

	case paych.State:
		from, err := s.From()
		if err != nil {
			return nil, err
		}
		to, err := s.To()
		if err != nil {
			return nil, err
		}
		toSend, err := s.ToSend()
		if err != nil {
			return nil, err
		}
		out["from"] = from.String()
		out["to"] = to.String()
		out["toSend"] = toSend.String()

	case reward.State:
		epoch, err := s.Epoch()
		if err != nil {
			return nil, err
		}
		thisEpoch, err := s.ThisEpochReward()
		if err != nil {
			return nil, err
		}
		total, err := s.TotalStoragePowerReward()
		if err != nil {
			return nil, err
		}
		out["epoch"] = int64(epoch)
		out["thisEpochReward"] = thisEpoch.String()
		out["totalStoragePowerReward"] = total.String()

	case verifreg.State:
		rootKey, err := s.RootKey()
		if err != nil {
			return nil, err
		}
		out["rootKey"] = rootKey.String()

	case datacap.State:
		gov, err := s.Governor()
		if err != nil {
			return nil, err
		}
		supply, err := s.TotalSupply()
		if err != nil {
			return nil, err
		}
		out["governor"] = gov.String()
		out["totalSupply"] = supply.String()

	case power.State:
		raw, err := s.TotalRawBytePower()
		if err != nil {
			return nil, err
		}
		qa, err := s.TotalQualityAdjPower()
		if err != nil {
			return nil, err
		}
		miners, err := s.MinerCount()
		if err != nil {
			return nil, err
		}
		out["totalRawBytePower"] = raw.String()
		out["totalQualityAdjPower"] = qa.String()
		out["minerCount"] = miners

	case market.State:
		next, err := s.NextDealID()
		if err != nil {
			return nil, err
		}
		locked, err := s.TotalLocked()
		if err != nil {
			return nil, err
		}
		out["nextDealID"] = uint64(next)
		out["totalLocked"] = locked.String()

	case miner.State:
		sectors, err := s.NumSectors(ctx)
		if err != nil {
			return nil, err
		}
		feeDebt, err := s.FeeDebt()
		if err != nil {
			return nil, err
		}
		currentDeadline, err := s.CurrentDeadline()
		if err != nil {
			return nil, err
		}
		out["sectors"] = sectors
		out["feeDebt"] = feeDebt.String()
		out["currentDeadline"] = currentDeadline

	case evm.State:
		nonce, err := s.Nonce()
		if err != nil {
			return nil, err
		}
		alive, err := s.IsAlive()
		if err != nil {
			return nil, err
		}
		bytecode, err := s.BytecodeCID()
		if err != nil {
			return nil, err
		}
		out["nonce"] = nonce
		out["alive"] = alive
		out["bytecode"] = bytecode.String()
	}
	return out, nil
}
