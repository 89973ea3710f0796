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

// Package bitfield implements the run-length-encoded integer sets used for
// sector numbers and deal batches: faults, recoveries, terminations, early
// termination queues. Sets are kept in run form end to end, so operations on
// huge but regular sets stay cheap.
package bitfield

import (
	"fmt"
	"math"
	"sort"

	"github.com/cerc-io/fil-state-service/pkg/codec"
)

// MaxEncodedSize caps the wire form of a single set.
const MaxEncodedSize = 32 << 10

// BitField is a set of uint64s in run-length form. The zero value is an empty
// set.
type BitField struct {
	runs []Run
}

// New returns an empty set.
func New() BitField {
	return BitField{}
}

// NewFromSet builds a set from explicit members. Duplicates are fine.
func NewFromSet(members []uint64) BitField {
	s := make([]uint64, len(members))
	copy(s, members)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	var runs []Run
	var next uint64
	for i := 0; i < len(s); {
		if s[i] > next {
			runs = append(runs, Run{Val: false, Len: s[i] - next})
			next = s[i]
		}
		var cnt uint64
		for i < len(s) && s[i] <= next {
			if s[i] == next {
				next++
				cnt++
			}
			i++
		}
		runs = append(runs, Run{Val: true, Len: cnt})
	}
	return BitField{runs: normalize(runs)}
}

// NewFromRuns builds a set directly from runs.
func NewFromRuns(runs []Run) BitField {
	return BitField{runs: normalize(runs)}
}

// Runs returns the normalized run form.
func (bf BitField) Runs() []Run {
	return bf.runs
}

// Count returns the number of members.
func (bf BitField) Count() uint64 {
	var n uint64
	for _, r := range bf.runs {
		if r.Val {
			n += r.Len
		}
	}
	return n
}

// IsEmpty reports whether the set has no members.
func (bf BitField) IsEmpty() bool {
	return len(bf.runs) == 0
}

// IsSet reports whether i is a member.
func (bf BitField) IsSet(i uint64) bool {
	var offset uint64
	for _, r := range bf.runs {
		if i < offset+r.Len {
			return r.Val
		}
		offset += r.Len
	}
	return false
}

// First returns the smallest member.
func (bf BitField) First() (uint64, error) {
	var offset uint64
	for _, r := range bf.runs {
		if r.Val {
			return offset, nil
		}
		offset += r.Len
	}
	return 0, fmt.Errorf("bitfield has no set bits")
}

// ForEach calls cb for every member in ascending order.
func (bf BitField) ForEach(cb func(i uint64) error) error {
	var offset uint64
	for _, r := range bf.runs {
		if r.Val {
			for i := uint64(0); i < r.Len; i++ {
				if err := cb(offset + i); err != nil {
					return err
				}
			}
		}
		offset += r.Len
	}
	return nil
}

// All returns every member, failing if the set has more than max.
func (bf BitField) All(max uint64) ([]uint64, error) {
	if c := bf.Count(); c > max {
		return nil, fmt.Errorf("bitfield has %d members, limit %d", c, max)
	}
	out := make([]uint64, 0, bf.Count())
	bf.ForEach(func(i uint64) error {
		out = append(out, i)
		return nil
	})
	return out, nil
}

// mergeRuns zips two run sequences through a boolean operator. Past the end
// of a sequence its bits are false.
func mergeRuns(a, b []Run, op func(x, y bool) bool) []Run {
	var out []Run
	ai, bi := 0, 0
	var arem, brem uint64
	for ai < len(a) || bi < len(b) || arem > 0 || brem > 0 {
		if arem == 0 && ai < len(a) {
			arem = a[ai].Len
			ai++
		}
		if brem == 0 && bi < len(b) {
			brem = b[bi].Len
			bi++
		}
		av := ai > 0 && arem > 0 && a[ai-1].Val
		bv := bi > 0 && brem > 0 && b[bi-1].Val
		var step uint64
		switch {
		case arem == 0:
			step = brem
		case brem == 0:
			step = arem
		case arem < brem:
			step = arem
		default:
			step = brem
		}
		out = append(out, Run{Val: op(av, bv), Len: step})
		if arem > 0 {
			arem -= step
		}
		if brem > 0 {
			brem -= step
		}
	}
	return normalize(out)
}

// Merge returns the union of a and b.
func Merge(a, b BitField) BitField {
	return BitField{runs: mergeRuns(a.runs, b.runs, func(x, y bool) bool { return x || y })}
}

// Intersect returns the intersection of a and b.
func Intersect(a, b BitField) BitField {
	return BitField{runs: mergeRuns(a.runs, b.runs, func(x, y bool) bool { return x && y })}
}

// Subtract returns the members of a not in b.
func Subtract(a, b BitField) BitField {
	return BitField{runs: mergeRuns(a.runs, b.runs, func(x, y bool) bool { return x && !y })}
}

// ContainsAll reports whether every member of sub is in sup.
func ContainsAll(sup, sub BitField) bool {
	return Subtract(sub, sup).IsEmpty()
}

// ContainsAny reports whether sub and sup share a member.
func ContainsAny(sup, sub BitField) bool {
	return !Intersect(sup, sub).IsEmpty()
}

// Set adds i to the set.
func (bf *BitField) Set(i uint64) {
	point := []Run{{Val: false, Len: i}, {Val: true, Len: 1}}
	bf.runs = mergeRuns(bf.runs, normalize(point), func(x, y bool) bool { return x || y })
}

// Unset removes i from the set.
func (bf *BitField) Unset(i uint64) {
	point := []Run{{Val: false, Len: i}, {Val: true, Len: 1}}
	bf.runs = mergeRuns(bf.runs, normalize(point), func(x, y bool) bool { return x && !y })
}

func (bf BitField) MarshalCBOR(w *codec.Writer) {
	w.WriteBytes(encodeRuns(bf.runs))
}

func (bf *BitField) UnmarshalCBOR(r *codec.Reader) {
	raw := r.ReadBytes(MaxEncodedSize)
	if r.Err() != nil {
		return
	}
	runs, err := decodeRuns(raw)
	if err != nil {
		r.Fail(err)
		return
	}
	bf.runs = runs
}

// Last returns the largest member.
func (bf BitField) Last() (uint64, error) {
	var offset uint64
	last := uint64(math.MaxUint64)
	for _, r := range bf.runs {
		offset += r.Len
		if r.Val {
			last = offset - 1
		}
	}
	if last == math.MaxUint64 {
		return 0, fmt.Errorf("bitfield has no set bits")
	}
	return last, nil
}
