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

package bitfield

import (
	"fmt"
	"math"
)

// Run is a maximal stretch of equal bits.
type Run struct {
	Val bool
	Len uint64
}

// The run-length wire form is a little-endian bit stream: a 2-bit version
// (always 0), one bit giving the value of the first run, then per run either
// "1" (length one), "01" plus 4 length bits, or "00" plus an unsigned varint,
// each length field least-significant bit first. Every run must use the
// shortest form that fits, so each bit set has exactly one encoding.

type bitWriter struct {
	out  []byte
	cur  byte
	nbit uint
}

func (bw *bitWriter) write(bits uint64, n uint) {
	for i := uint(0); i < n; i++ {
		if bits&(1<<i) != 0 {
			bw.cur |= 1 << bw.nbit
		}
		bw.nbit++
		if bw.nbit == 8 {
			bw.out = append(bw.out, bw.cur)
			bw.cur = 0
			bw.nbit = 0
		}
	}
}

func (bw *bitWriter) writeVarint(v uint64) {
	for v >= 0x80 {
		bw.write(v&0x7f|0x80, 8)
		v >>= 7
	}
	bw.write(v, 8)
}

func (bw *bitWriter) finish() []byte {
	if bw.nbit > 0 {
		bw.out = append(bw.out, bw.cur)
	}
	return bw.out
}

type bitReader struct {
	data []byte
	pos  uint // bit position
}

func (br *bitReader) remaining() uint {
	return uint(len(br.data))*8 - br.pos
}

func (br *bitReader) read(n uint) uint64 {
	var out uint64
	for i := uint(0); i < n; i++ {
		byt := br.data[br.pos/8]
		if byt&(1<<(br.pos%8)) != 0 {
			out |= 1 << i
		}
		br.pos++
	}
	return out
}

func (br *bitReader) readVarint() (uint64, error) {
	var out uint64
	for shift := uint(0); ; shift += 7 {
		if shift > 63 {
			return 0, fmt.Errorf("run length varint too long")
		}
		if br.remaining() < 8 {
			return 0, fmt.Errorf("truncated run length varint")
		}
		b := br.read(8)
		out |= (b & 0x7f) << shift
		if b&0x80 == 0 {
			if b == 0 && shift > 0 {
				return 0, fmt.Errorf("non-minimal run length varint")
			}
			return out, nil
		}
	}
}

const maxRuns = 1 << 20

// encodeRuns produces the wire bytes for a normalized run sequence.
func encodeRuns(runs []Run) []byte {
	bw := &bitWriter{}
	bw.write(0, 2) // version
	first := uint64(0)
	if len(runs) > 0 && runs[0].Val {
		first = 1
	}
	bw.write(first, 1)
	for _, r := range runs {
		switch {
		case r.Len == 1:
			bw.write(1, 1)
		case r.Len < 16:
			bw.write(2, 2) // "01" LSB-first
			bw.write(r.Len, 4)
		default:
			bw.write(0, 2)
			bw.writeVarint(r.Len)
		}
	}
	return bw.finish()
}

// decodeRuns parses and validates wire bytes into a normalized run sequence.
func decodeRuns(data []byte) ([]Run, error) {
	if len(data) == 0 {
		return nil, nil
	}
	br := &bitReader{data: data}
	if v := br.read(2); v != 0 {
		return nil, fmt.Errorf("unsupported run-length version %d", v)
	}
	val := br.read(1) == 1
	var runs []Run
	var total uint64
	for br.remaining() > 0 {
		// all-zero tail bits are padding from the final partial byte
		if br.remaining() < 8 && allZeroFrom(br) {
			break
		}
		var length uint64
		switch {
		case br.read(1) == 1:
			length = 1
		case br.remaining() >= 1 && br.read(1) == 1:
			if br.remaining() < 4 {
				return nil, fmt.Errorf("truncated short run length")
			}
			length = br.read(4)
			if length < 2 {
				return nil, fmt.Errorf("non-minimal short run")
			}
		default:
			v, err := br.readVarint()
			if err != nil {
				return nil, err
			}
			if v < 16 {
				return nil, fmt.Errorf("non-minimal long run")
			}
			length = v
		}
		if total > math.MaxUint64-length {
			return nil, fmt.Errorf("run lengths overflow index space")
		}
		total += length
		runs = append(runs, Run{Val: val, Len: length})
		if len(runs) > maxRuns {
			return nil, fmt.Errorf("too many runs")
		}
		val = !val
	}
	return normalize(runs), nil
}

func allZeroFrom(br *bitReader) bool {
	for p := br.pos; p < uint(len(br.data))*8; p++ {
		if br.data[p/8]&(1<<(p%8)) != 0 {
			return false
		}
	}
	return true
}

// normalize merges adjacent equal-valued runs, drops zero-length runs and
// strips the trailing zero run.
func normalize(runs []Run) []Run {
	var out []Run
	for _, r := range runs {
		if r.Len == 0 {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Val == r.Val {
			out[len(out)-1].Len += r.Len
			continue
		}
		out = append(out, r)
	}
	if len(out) > 0 && !out[len(out)-1].Val {
		out = out[:len(out)-1]
	}
	return out
}
