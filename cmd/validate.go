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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	statereader "github.com/cerc-io/fil-state-service/pkg"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Walk actors in the snapshot and run their invariant checks",
	Long: `Usage

./fil-state-service validate --config={path to toml config file} [--addr=f05 ...]`,
	Run: func(cmd *cobra.Command, args []string) {
		subCommand = cmd.CalledAs()
		logWithCommand = *logrus.WithField("SubCommand", subCommand)
		validate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.PersistentFlags().StringSlice("addr", nil, "limit the run to these addresses; repeatable")
	viper.BindPFlag("validate.addresses", validateCmd.PersistentFlags().Lookup("addr"))
}

func validate() {
	logWithCommand.Info("Starting invariant validation")
	ctx := context.Background()

	reader := instantiateSnapshotReader(ctx)
	validator := statereader.NewValidator(reader, viper.GetUint("validate.walkWorkers"))

	req := statereader.ValidateRequest{
		Addresses: viper.GetStringSlice("validate.addresses"),
	}
	report, err := validator.Validate(ctx, req)
	if err != nil {
		logWithCommand.Fatalf("validation run failed: %v", err)
	}

	for _, f := range report.Failures {
		logWithCommand.WithFields(logrus.Fields{
			"address": f.Address,
			"kind":    f.Kind,
		}).Error(f.Violation)
	}
	logWithCommand.WithFields(logrus.Fields{
		"checked":  report.Checked,
		"failures": len(report.Failures),
	}).Info("validation run complete")
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}
