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

package miner

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/adt"
	"github.com/cerc-io/fil-state-service/pkg/bitfield"
	"github.com/cerc-io/fil-state-service/pkg/codec"
	"github.com/cerc-io/fil-state-service/pkg/store"
)

// WPoStPeriodDeadlines is the number of deadlines per proving period.
const WPoStPeriodDeadlines = 48

// deadlines is the fixed table of per-deadline roots.
type deadlines struct {
	due [WPoStPeriodDeadlines]cid.Cid
}

func (d *deadlines) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(1)
	r.ExpectArray(WPoStPeriodDeadlines)
	for i := range d.due {
		d.due[i] = r.ReadCid()
	}
}

func (d *deadlines) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(1)
	w.WriteArray(WPoStPeriodDeadlines)
	for i := range d.due {
		w.WriteCid(d.due[i])
	}
}

// Deadline is one window's worth of partitions, plus the snapshots taken at
// its last close.
type Deadline struct {
	store store.Store

	Partitions                        cid.Cid
	ExpirationsEpochs                 cid.Cid
	PartitionsPoSted                  bitfield.BitField
	EarlyTerminations                 bitfield.BitField
	LiveSectors                       uint64
	TotalSectors                      uint64
	FaultyPower                       PowerPair
	OptimisticPoStSubmissions         cid.Cid
	SectorsSnapshot                   cid.Cid
	PartitionsSnapshot                cid.Cid
	OptimisticPoStSubmissionsSnapshot cid.Cid
}

func (dl *Deadline) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(11)
	dl.Partitions = r.ReadCid()
	dl.ExpirationsEpochs = r.ReadCid()
	dl.PartitionsPoSted.UnmarshalCBOR(r)
	dl.EarlyTerminations.UnmarshalCBOR(r)
	dl.LiveSectors = r.ReadUint64()
	dl.TotalSectors = r.ReadUint64()
	dl.FaultyPower.UnmarshalCBOR(r)
	dl.OptimisticPoStSubmissions = r.ReadCid()
	dl.SectorsSnapshot = r.ReadCid()
	dl.PartitionsSnapshot = r.ReadCid()
	dl.OptimisticPoStSubmissionsSnapshot = r.ReadCid()
}

func (dl *Deadline) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(11)
	w.WriteCid(dl.Partitions)
	w.WriteCid(dl.ExpirationsEpochs)
	dl.PartitionsPoSted.MarshalCBOR(w)
	dl.EarlyTerminations.MarshalCBOR(w)
	w.WriteUint64(dl.LiveSectors)
	w.WriteUint64(dl.TotalSectors)
	dl.FaultyPower.MarshalCBOR(w)
	w.WriteCid(dl.OptimisticPoStSubmissions)
	w.WriteCid(dl.SectorsSnapshot)
	w.WriteCid(dl.PartitionsSnapshot)
	w.WriteCid(dl.OptimisticPoStSubmissionsSnapshot)
}

// LoadPartition fetches one partition by index within the deadline.
func (dl *Deadline) LoadPartition(ctx context.Context, idx uint64) (*Partition, bool, error) {
	arr, err := adt.AsArray(ctx, dl.store, dl.Partitions)
	if err != nil {
		return nil, false, err
	}
	var p Partition
	found, err := arr.Get(ctx, idx, &p)
	if err != nil || !found {
		return nil, found, err
	}
	return &p, true, nil
}

// ForEachPartition visits the deadline's partitions in index order.
func (dl *Deadline) ForEachPartition(ctx context.Context, cb func(idx uint64, p *Partition) error) error {
	arr, err := adt.AsArray(ctx, dl.store, dl.Partitions)
	if err != nil {
		return err
	}
	return arr.ForEach(ctx, func(i uint64, d *codec.Deferred) error {
		var p Partition
		if err := codec.Decode(d.Raw, &p); err != nil {
			return err
		}
		return cb(i, &p)
	})
}

// PartitionCount reports how many partitions the deadline holds.
func (dl *Deadline) PartitionCount(ctx context.Context) (uint64, error) {
	arr, err := adt.AsArray(ctx, dl.store, dl.Partitions)
	if err != nil {
		return 0, err
	}
	return arr.Length(), nil
}

// Partition groups sectors scheduled for the same windowed proofs. The five
// bitfields partition the sector numbers by fault status.
type Partition struct {
	Sectors           bitfield.BitField
	Unproven          bitfield.BitField
	Faults            bitfield.BitField
	Recoveries        bitfield.BitField
	Terminated        bitfield.BitField
	ExpirationsEpochs cid.Cid
	EarlyTerminated   cid.Cid
	LivePower         PowerPair
	UnprovenPower     PowerPair
	FaultyPower       PowerPair
	RecoveringPower   PowerPair
}

func (p *Partition) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(11)
	p.Sectors.UnmarshalCBOR(r)
	p.Unproven.UnmarshalCBOR(r)
	p.Faults.UnmarshalCBOR(r)
	p.Recoveries.UnmarshalCBOR(r)
	p.Terminated.UnmarshalCBOR(r)
	p.ExpirationsEpochs = r.ReadCid()
	p.EarlyTerminated = r.ReadCid()
	p.LivePower.UnmarshalCBOR(r)
	p.UnprovenPower.UnmarshalCBOR(r)
	p.FaultyPower.UnmarshalCBOR(r)
	p.RecoveringPower.UnmarshalCBOR(r)
}

func (p *Partition) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(11)
	p.Sectors.MarshalCBOR(w)
	p.Unproven.MarshalCBOR(w)
	p.Faults.MarshalCBOR(w)
	p.Recoveries.MarshalCBOR(w)
	p.Terminated.MarshalCBOR(w)
	w.WriteCid(p.ExpirationsEpochs)
	w.WriteCid(p.EarlyTerminated)
	p.LivePower.MarshalCBOR(w)
	p.UnprovenPower.MarshalCBOR(w)
	p.FaultyPower.MarshalCBOR(w)
	p.RecoveringPower.MarshalCBOR(w)
}

// LiveSectors is the partition's sectors that have not been terminated.
func (p *Partition) LiveSectors() bitfield.BitField {
	return bitfield.Subtract(p.Sectors, p.Terminated)
}

// ActiveSectors is the live sectors that are proven and not faulty.
func (p *Partition) ActiveSectors() bitfield.BitField {
	live := p.LiveSectors()
	return bitfield.Subtract(bitfield.Subtract(live, p.Unproven), p.Faults)
}
