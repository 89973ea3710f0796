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
	"context"
	"encoding/json"
	"os"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	statereader "github.com/cerc-io/fil-state-service/pkg"
)

// clientCmd represents the client command
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Client for querying a running fil-state-service instance",
	Long: `Usage

./fil-state-service client --rpc-endpoint=http://localhost:8545 --addr=f05 [--queue]`,
	Run: func(cmd *cobra.Command, args []string) {
		subCommand = cmd.CalledAs()
		logWithCommand = *logrus.WithField("SubCommand", subCommand)
		client()
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.PersistentFlags().String("rpc-endpoint", "http://localhost:8545", "fil-state-service RPC endpoint")
	clientCmd.PersistentFlags().StringSlice("addr", nil, "actor addresses to query; repeatable")
	clientCmd.PersistentFlags().Bool("queue", false, "queue a background validation run instead of fetching state")
	viper.BindPFlag("client.rpcEndpoint", clientCmd.PersistentFlags().Lookup("rpc-endpoint"))
	viper.BindPFlag("client.addresses", clientCmd.PersistentFlags().Lookup("addr"))
	viper.BindPFlag("client.queue", clientCmd.PersistentFlags().Lookup("queue"))
}

func client() {
	logWithCommand.Debug("Running fil-state-service client command")

	endpoint := viper.GetString("client.rpcEndpoint")
	rpcClient, err := rpc.Dial(endpoint)
	if err != nil {
		logWithCommand.Fatalf("unable to dial %s: %v", endpoint, err)
	}
	defer rpcClient.Close()

	ctx := context.Background()
	addrs := viper.GetStringSlice("client.addresses")

	if viper.GetBool("client.queue") {
		var ok bool
		req := statereader.ValidateRequest{Addresses: addrs}
		if err := rpcClient.CallContext(ctx, &ok, "fil_queueValidation", req); err != nil {
			logWithCommand.Fatal(err)
		}
		logWithCommand.WithField("queued", ok).Info("validation request submitted")
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if len(addrs) == 0 {
		var list []statereader.Actor
		if err := rpcClient.CallContext(ctx, &list, "fil_listActors"); err != nil {
			logWithCommand.Fatal(err)
		}
		if err := enc.Encode(list); err != nil {
			logWithCommand.Fatal(err)
		}
		return
	}

	for _, addr := range addrs {
		var st statereader.ActorState
		if err := rpcClient.CallContext(ctx, &st, "fil_actorState", addr); err != nil {
			logWithCommand.WithField("address", addr).Fatal(err)
		}
		if err := enc.Encode(st); err != nil {
			logWithCommand.Fatal(err)
		}
	}
}
