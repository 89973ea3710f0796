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

	"github.com/spf13/viper"

	statereader "github.com/cerc-io/fil-state-service/pkg"
)

func readerConfig() statereader.ReaderConfig {
	return statereader.ReaderConfig{
		SnapshotPath:  viper.GetString("snapshot.path"),
		StateRoot:     viper.GetString("snapshot.stateRoot"),
		BundleVersion: viper.GetInt("snapshot.bundleVersion"),
		CacheSize:     viper.GetInt("cache.blocks"),
	}
}

// instantiateSnapshotReader loads the configured CAR snapshot behind the
// layered store.
func instantiateSnapshotReader(ctx context.Context) *statereader.SnapshotReader {
	cfg := readerConfig()
	if cfg.SnapshotPath == "" {
		logWithCommand.Fatal("require a valid CAR snapshot path")
	}
	logWithCommand.WithField("path", cfg.SnapshotPath).Info("Loading snapshot")
	reader, err := statereader.NewSnapshotReader(ctx, cfg)
	if err != nil {
		logWithCommand.Fatal(err)
	}
	return reader
}

func createStateReaderService(ctx context.Context) *statereader.Service {
	reader := instantiateSnapshotReader(ctx)
	logWithCommand.Info("Creating state reader service")
	conf := statereader.Config{
		ServiceWorkers:  viper.GetUint("validate.serviceWorkers"),
		WalkWorkers:     viper.GetUint("validate.walkWorkers"),
		WorkerQueueSize: viper.GetUint("validate.workerQueueSize"),
		PreRuns:         setupPreRuns(),
	}
	return statereader.NewService(reader, conf)
}

func setupPreRuns() []statereader.ValidateRequest {
	if !viper.GetBool("validate.prerun") {
		return nil
	}
	var addrGroups [][]string
	viper.UnmarshalKey("prerun.addresses", &addrGroups)
	reqs := make([]statereader.ValidateRequest, 0, len(addrGroups)+1)
	for _, addrs := range addrGroups {
		reqs = append(reqs, statereader.ValidateRequest{Addresses: addrs})
	}
	if viper.GetBool("prerun.all") {
		reqs = append(reqs, statereader.ValidateRequest{})
	}
	return reqs
}
