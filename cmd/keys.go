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

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cerc-io/fil-state-service/pkg/abi"
)

// keysCmd translates addresses into the forms used as trie keys. Handy when
// poking at raw snapshot data.
var keysCmd = &cobra.Command{
	Use:   "keys [address ...]",
	Short: "Show the trie key bytes and alternate forms of Filecoin addresses",
	Long: `Usage

./fil-state-service keys f05 f410f... 0xd4c5fb16488aa48081296299d54b0c648c9333da`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		subCommand = cmd.CalledAs()
		logWithCommand = *logrus.WithField("SubCommand", subCommand)
		keys(args)
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

func keys(args []string) {
	for _, arg := range args {
		if err := describeAddress(arg); err != nil {
			logWithCommand.WithField("address", arg).Fatal(err)
		}
	}
}

func describeAddress(arg string) error {
	// 0x-prefixed arguments are Ethereum addresses; map them onto the f4
	// delegated namespace first.
	if len(arg) == 42 && arg[:2] == "0x" {
		if !common.IsHexAddress(arg) {
			return fmt.Errorf("invalid hex address %q", arg)
		}
		addr, err := abi.DelegatedFromEthAddress(common.HexToAddress(arg))
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", arg)
		fmt.Printf("  delegated: %s\n", addr)
		fmt.Printf("  key bytes: %s\n", hex.EncodeToString(abi.AddrKey(addr)))
		return nil
	}

	addr, err := address.NewFromString(arg)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", addr)
	fmt.Printf("  protocol:  %d\n", addr.Protocol())
	fmt.Printf("  key bytes: %s\n", hex.EncodeToString(abi.AddrKey(addr)))
	if addr.Protocol() == address.Delegated {
		if eth, err := abi.EthAddressFromDelegated(addr); err == nil {
			fmt.Printf("  eth:       %s\n", eth.Hex())
		}
	}
	return nil
}
