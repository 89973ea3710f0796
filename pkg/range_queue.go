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
	"errors"

	"github.com/cerc-io/fil-state-service/pkg/prom"
)

var errQueueFull = errors.New("validation queue is full")

// validateQueue hands queued validation requests to the service workers. The
// channel bound is the worker queue size from config.
type validateQueue struct {
	ch chan ValidateRequest
}

func newValidateQueue(size uint) *validateQueue {
	if size == 0 {
		size = 1
	}
	return &validateQueue{ch: make(chan ValidateRequest, size)}
}

func (q *validateQueue) push(req ValidateRequest) error {
	select {
	case q.ch <- req:
		prom.IncQueuedTasks()
		return nil
	default:
		return errQueueFull
	}
}

// pop blocks until a request arrives or the quit channel closes.
func (q *validateQueue) pop(quit <-chan struct{}) (ValidateRequest, bool) {
	select {
	case req := <-q.ch:
		prom.DecQueuedTasks()
		return req, true
	case <-quit:
		return ValidateRequest{}, false
	}
}
