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
	"github.com/spf13/viper"
)

const (
	SNAPSHOT_PATH           = "SNAPSHOT_PATH"
	SNAPSHOT_STATE_ROOT     = "SNAPSHOT_STATE_ROOT"
	SNAPSHOT_BUNDLE_VERSION = "SNAPSHOT_BUNDLE_VERSION"

	BLOCK_CACHE_SIZE = "BLOCK_CACHE_SIZE"

	VALIDATE_SERVICE_WORKERS   = "VALIDATE_SERVICE_WORKERS"
	VALIDATE_WALK_WORKERS      = "VALIDATE_WALK_WORKERS"
	VALIDATE_WORKER_QUEUE_SIZE = "VALIDATE_WORKER_QUEUE_SIZE"
)

// Bind env vars for snapshot and validation configuration
func init() {
	viper.BindEnv("snapshot.path", SNAPSHOT_PATH)
	viper.BindEnv("snapshot.stateRoot", SNAPSHOT_STATE_ROOT)
	viper.BindEnv("snapshot.bundleVersion", SNAPSHOT_BUNDLE_VERSION)

	viper.BindEnv("cache.blocks", BLOCK_CACHE_SIZE)

	viper.BindEnv("validate.serviceWorkers", VALIDATE_SERVICE_WORKERS)
	viper.BindEnv("validate.walkWorkers", VALIDATE_WALK_WORKERS)
	viper.BindEnv("validate.workerQueueSize", VALIDATE_WORKER_QUEUE_SIZE)
}
