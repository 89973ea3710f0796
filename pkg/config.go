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

// Config holds the service-level parameters.
type Config struct {
	// ServiceWorkers is the number of queued validation requests processed
	// concurrently.
	ServiceWorkers uint
	// WalkWorkers is the number of goroutines used to traverse the actors
	// trie within one validation run.
	WalkWorkers uint
	// WorkerQueueSize bounds the validation request queue.
	WorkerQueueSize uint
	// PreRuns are validation requests executed on startup.
	PreRuns []ValidateRequest
}
