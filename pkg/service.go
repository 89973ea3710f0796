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

// Package statereader is the standalone actor-state reading service: a CAR
// snapshot behind a layered block store, the state tree over it, and an RPC
// surface for actor queries and invariant validation runs.
package statereader

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/filecoin-project/go-address"
	"github.com/sirupsen/logrus"

	"github.com/cerc-io/fil-state-service/pkg/actors"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/market"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/miner"
	"github.com/cerc-io/fil-state-service/pkg/actors/builtin/power"
)

// Well-known singleton addresses.
var (
	powerAddr  = mustIDAddress(4)
	marketAddr = mustIDAddress(5)
)

func mustIDAddress(id uint64) address.Address {
	a, err := address.NewIDAddress(id)
	if err != nil {
		panic(err)
	}
	return a
}

// IService is the actor-state reading service interface.
type IService interface {
	// APIs returns the RPC descriptors the service offers.
	APIs() []rpc.API
	// Loop starts the validation workers.
	Loop(wg *sync.WaitGroup) error
	Start() error
	Stop() error

	Actor(ctx context.Context, addr string) (*Actor, error)
	ActorState(ctx context.Context, addr string) (*ActorState, error)
	ListActors(ctx context.Context) ([]Actor, error)
	MinerInfo(ctx context.Context, addr string) (*MinerInfo, error)
	MinerPower(ctx context.Context, addr string) (*MinerPower, error)
	MarketBalance(ctx context.Context, addr string) (*MarketBalance, error)
	CheckActor(ctx context.Context, addr string) (*CheckReport, error)
	// QueueValidation enqueues a request for the background workers.
	QueueValidation(req ValidateRequest) error
	// Validate runs a request synchronously.
	Validate(ctx context.Context, req ValidateRequest) (*ValidateReport, error)
}

// Service is the underlying struct for the state reading service.
type Service struct {
	reader    *SnapshotReader
	validator *Validator
	config    Config
	queue     *validateQueue
	quitChan  chan struct{}
}

// NewService creates a Service over an opened snapshot.
func NewService(reader *SnapshotReader, config Config) *Service {
	return &Service{
		reader:    reader,
		validator: NewValidator(reader, config.WalkWorkers),
		config:    config,
		queue:     newValidateQueue(config.WorkerQueueSize),
		quitChan:  make(chan struct{}),
	}
}

// APIs returns the RPC descriptors the Service offers.
func (s *Service) APIs() []rpc.API {
	return []rpc.API{
		{
			Namespace: APIName,
			Version:   APIVersion,
			Service:   NewPublicStateReaderAPI(s),
			Public:    true,
		},
	}
}

// Loop runs the validation workers until Stop.
func (s *Service) Loop(wg *sync.WaitGroup) error {
	workers := s.config.ServiceWorkers
	if workers == 0 {
		workers = 1
	}
	for i := uint(0); i < workers; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			for {
				req, ok := s.queue.pop(s.quitChan)
				if !ok {
					logrus.WithField("worker", id).Debug("validation worker stopping")
					return
				}
				report, err := s.validator.Validate(context.Background(), req)
				if err != nil {
					logrus.WithField("worker", id).WithError(err).Error("validation run failed")
					continue
				}
				logrus.WithFields(logrus.Fields{
					"worker":   id,
					"checked":  report.Checked,
					"failures": len(report.Failures),
				}).Info("validation run complete")
			}
		}(i)
	}
	for _, req := range s.config.PreRuns {
		if err := s.QueueValidation(req); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the service loop with its own wait group.
func (s *Service) Start() error {
	logrus.Info("starting state reading service")
	return s.Loop(new(sync.WaitGroup))
}

// Stop shuts the workers down.
func (s *Service) Stop() error {
	logrus.Info("stopping state reading service")
	close(s.quitChan)
	return nil
}

// QueueValidation enqueues a validation request.
func (s *Service) QueueValidation(req ValidateRequest) error {
	return s.queue.push(req)
}

// Validate runs a validation request synchronously.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateReport, error) {
	return s.validator.Validate(ctx, req)
}

// actorAt resolves an address string to its record and family.
func (s *Service) actorAt(ctx context.Context, addrStr string) (address.Address, *actors.Actor, actors.Kind, error) {
	addr, err := address.NewFromString(addrStr)
	if err != nil {
		return address.Undef, nil, "", err
	}
	act, found, err := s.reader.Tree().GetActor(ctx, addr)
	if err != nil {
		return address.Undef, nil, "", err
	}
	if !found {
		return address.Undef, nil, "", &actorNotFoundError{addr: addr}
	}
	kind, _, ok := s.reader.Registry().Lookup(act.Code)
	if !ok {
		return address.Undef, nil, "", &actors.UnknownCodeError{Code: act.Code}
	}
	return addr, act, kind, nil
}

func (s *Service) actorDTO(addr address.Address, act *actors.Actor, kind actors.Kind) Actor {
	dto := Actor{
		Address:    addr.String(),
		Kind:       string(kind),
		Version:    s.reader.Version().String(),
		Code:       act.Code.String(),
		Head:       act.Head.String(),
		CallSeqNum: act.CallSeqNum,
		Balance:    act.Balance.String(),
	}
	if act.DelegatedAddress != nil {
		dto.DelegatedAddress = act.DelegatedAddress.String()
	}
	return dto
}

// Actor returns the actor record at addr.
func (s *Service) Actor(ctx context.Context, addrStr string) (*Actor, error) {
	addr, act, kind, err := s.actorAt(ctx, addrStr)
	if err != nil {
		return nil, err
	}
	dto := s.actorDTO(addr, act, kind)
	return &dto, nil
}

// ActorState returns the actor record plus a decoded-state summary.
func (s *Service) ActorState(ctx context.Context, addrStr string) (*ActorState, error) {
	addr, act, kind, err := s.actorAt(ctx, addrStr)
	if err != nil {
		return nil, err
	}
	st, _, err := builtin.Load(ctx, s.reader.Store(), s.reader.Registry(), act)
	if err != nil {
		return nil, err
	}
	summary, err := summarizeState(ctx, st)
	if err != nil {
		return nil, err
	}
	return &ActorState{Actor: s.actorDTO(addr, act, kind), State: summary}, nil
}

// ListActors returns every actor in the tree, sorted by address.
func (s *Service) ListActors(ctx context.Context) ([]Actor, error) {
	var out []Actor
	err := s.reader.Tree().ForEach(ctx, func(addr address.Address, act *actors.Actor) error {
		kind, _, ok := s.reader.Registry().Lookup(act.Code)
		if !ok {
			return &actors.UnknownCodeError{Code: act.Code}
		}
		out = append(out, s.actorDTO(addr, act, kind))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// MinerInfo returns the static configuration of the miner at addr.
func (s *Service) MinerInfo(ctx context.Context, addrStr string) (*MinerInfo, error) {
	_, act, kind, err := s.actorAt(ctx, addrStr)
	if err != nil {
		return nil, err
	}
	if kind != actors.KindMiner {
		return nil, actors.Violation(kind, "actor %s is not a miner", addrStr)
	}
	st, err := miner.Load(ctx, s.reader.Store(), s.reader.Version(), act.Head)
	if err != nil {
		return nil, err
	}
	mi, err := st.Info(ctx)
	if err != nil {
		return nil, err
	}
	dto := &MinerInfo{
		Owner:                      mi.Owner.String(),
		Worker:                     mi.Worker.String(),
		PeerID:                     string(mi.PeerID),
		WindowPoStProofType:        int64(mi.WindowPoStProofType),
		SectorSize:                 uint64(mi.SectorSize),
		WindowPoStPartitionSectors: mi.WindowPoStPartitionSectors,
	}
	for _, c := range mi.ControlAddresses {
		dto.ControlAddresses = append(dto.ControlAddresses, c.String())
	}
	if mi.SchemaVersion != actors.V8 {
		dto.Beneficiary = mi.Beneficiary.String()
	}
	return dto, nil
}

// MinerPower returns the miner's power claim against the network totals.
func (s *Service) MinerPower(ctx context.Context, addrStr string) (*MinerPower, error) {
	addr, err := address.NewFromString(addrStr)
	if err != nil {
		return nil, err
	}
	powerActor, found, err := s.reader.Tree().GetActor(ctx, powerAddr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &actorNotFoundError{addr: powerAddr}
	}
	st, err := power.Load(ctx, s.reader.Store(), s.reader.Version(), powerActor.Head)
	if err != nil {
		return nil, err
	}
	totalRaw, err := st.TotalRawBytePower()
	if err != nil {
		return nil, err
	}
	totalQA, err := st.TotalQualityAdjPower()
	if err != nil {
		return nil, err
	}
	dto := &MinerPower{
		TotalRawBytePower:    totalRaw.String(),
		TotalQualityAdjPower: totalQA.String(),
	}
	claim, found, err := st.MinerPower(ctx, addr)
	if err != nil {
		return nil, err
	}
	if found {
		dto.HasClaim = true
		dto.RawBytePower = claim.RawBytePower.String()
		dto.QualityAdjPower = claim.QualityAdjPower.String()
	}
	return dto, nil
}

// MarketBalance returns addr's market escrow and locked balances.
func (s *Service) MarketBalance(ctx context.Context, addrStr string) (*MarketBalance, error) {
	addr, err := address.NewFromString(addrStr)
	if err != nil {
		return nil, err
	}
	marketActor, found, err := s.reader.Tree().GetActor(ctx, marketAddr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &actorNotFoundError{addr: marketAddr}
	}
	st, err := market.Load(ctx, s.reader.Store(), s.reader.Version(), marketActor.Head)
	if err != nil {
		return nil, err
	}
	escrow, err := st.EscrowBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	locked, err := st.LockedBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &MarketBalance{Escrow: escrow.String(), Locked: locked.String()}, nil
}

// CheckActor runs the invariants of the actor at addr.
func (s *Service) CheckActor(ctx context.Context, addrStr string) (*CheckReport, error) {
	addr, err := address.NewFromString(addrStr)
	if err != nil {
		return nil, err
	}
	return s.validator.ValidateActor(ctx, addr)
}
