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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/filecoin-project/go-address"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/prom"
)

type actorNotFoundError struct {
	addr address.Address
}

func (e *actorNotFoundError) Error() string {
	return fmt.Sprintf("no actor at address %s", e.addr)
}

// Validator walks actors and runs their invariant checks. An invariant
// violation is a finding, not a walk failure: the walk continues and the
// violation lands in the report. Decode and store errors abort the walk.
type Validator struct {
	reader  *SnapshotReader
	workers uint
}

// NewValidator creates a Validator; workers sets the trie traversal
// parallelism.
func NewValidator(reader *SnapshotReader, workers uint) *Validator {
	if workers == 0 {
		workers = 1
	}
	return &Validator{reader: reader, workers: workers}
}

// checkActor loads one actor's state and runs its invariants.
func (v *Validator) checkActor(ctx context.Context, addr address.Address, act *actors.Actor) (*CheckReport, error) {
	t := time.Now()
	st, kind, err := builtin.Load(ctx, v.reader.Store(), v.reader.Registry(), act)
	if err != nil {
		if codec.IsDecodeError(err) {
			prom.IncDecodeFailure()
		}
		return nil, err
	}
	prom.SetTimeMetric(prom.T_ACTOR_LOAD, time.Since(t))

	report := &CheckReport{
		Address: addr.String(),
		Kind:    string(kind),
		Version: st.Version().String(),
		Ok:      true,
	}
	t = time.Now()
	if err := st.CheckInvariants(ctx); err != nil {
		var iv *actors.InvariantViolationError
		if !errors.As(err, &iv) {
			return nil, err
		}
		report.Ok = false
		report.Violation = iv.Error()
	}
	prom.SetTimeMetric(prom.T_INVARIANT_CHECK, time.Since(t))
	return report, nil
}

// ValidateActor runs the invariants of the actor at addr.
func (v *Validator) ValidateActor(ctx context.Context, addr address.Address) (*CheckReport, error) {
	act, found, err := v.reader.Tree().GetActor(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &actorNotFoundError{addr: addr}
	}
	return v.checkActor(ctx, addr, act)
}

// ValidateAll walks the whole actors trie with the configured parallelism.
func (v *Validator) ValidateAll(ctx context.Context) (*ValidateReport, error) {
	var mu sync.Mutex
	report := &ValidateReport{}
	err := v.reader.Tree().ParallelForEach(ctx, int(v.workers), func(addr address.Address, act *actors.Actor) error {
		cr, err := v.checkActor(ctx, addr, act)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		report.Checked++
		if !cr.Ok {
			report.Failures = append(report.Failures, *cr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Address < report.Failures[j].Address
	})
	return report, nil
}

// Validate runs the request: named actors if given, the whole tree otherwise.
func (v *Validator) Validate(ctx context.Context, req ValidateRequest) (*ValidateReport, error) {
	if len(req.Addresses) == 0 {
		return v.ValidateAll(ctx)
	}
	report := &ValidateReport{}
	for _, as := range req.Addresses {
		addr, err := address.NewFromString(as)
		if err != nil {
			return nil, err
		}
		cr, err := v.ValidateActor(ctx, addr)
		if err != nil {
			return nil, err
		}
		report.Checked++
		if !cr.Ok {
			report.Failures = append(report.Failures, *cr)
		}
	}
	return report, nil
}
