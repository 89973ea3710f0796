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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump actor state from a CAR snapshot as JSON",
	Long: `Usage

./fil-state-service inspect --config={path to toml config file} [--addr=f05]

Without --addr the whole actor table is listed.`,
	Run: func(cmd *cobra.Command, args []string) {
		subCommand = cmd.CalledAs()
		logWithCommand = *logrus.WithField("SubCommand", subCommand)
		inspect()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.PersistentFlags().String("addr", "", "address of the actor to dump")
	viper.BindPFlag("inspect.addr", inspectCmd.PersistentFlags().Lookup("addr"))
}

func inspect() {
	ctx := context.Background()
	service := createStateReaderService(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if addr := viper.GetString("inspect.addr"); addr != "" {
		st, err := service.ActorState(ctx, addr)
		if err != nil {
			logWithCommand.Fatal(err)
		}
		if err := enc.Encode(st); err != nil {
			logWithCommand.Fatal(err)
		}
		return
	}

	list, err := service.ListActors(ctx)
	if err != nil {
		logWithCommand.Fatal(err)
	}
	if err := enc.Encode(list); err != nil {
		logWithCommand.Fatal(err)
	}
}
