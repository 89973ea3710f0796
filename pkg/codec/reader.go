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

package codec

import (
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
)

// Reader decodes canonical CBOR from an in-memory buffer. The first error
// encountered sticks: every subsequent call is a no-op returning zero values,
// so record decoders can read field-by-field and check Err once at the end.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Fail records err as the sticky error if none is set. Record decoders use it
// to inject shape violations discovered above the scalar level.
func (r *Reader) Fail(err error) {
	r.fail(err)
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Remaining returns the number of undecoded bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) readByte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.data) {
		r.fail(ErrTruncatedInput)
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *Reader) readN(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail(ErrTruncatedInput)
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *Reader) peekByte() (byte, bool) {
	if r.err != nil || r.pos >= len(r.data) {
		return 0, false
	}
	return r.data[r.pos], true
}

// header reads a major-type header and enforces canonical (minimal-width,
// definite-length) encoding.
func (r *Reader) header() (byte, uint64) {
	b := r.readByte()
	if r.err != nil {
		return 0, 0
	}
	maj := b >> 5
	low := b & 0x1f
	switch {
	case low < 24:
		return maj, uint64(low)
	case low == 24:
		v := uint64(r.readByte())
		if r.err == nil && v < 24 {
			r.fail(invalidScalarf("non-minimal uint8 header"))
		}
		return maj, v
	case low == 25:
		buf := r.readN(2)
		if r.err != nil {
			return 0, 0
		}
		v := uint64(buf[0])<<8 | uint64(buf[1])
		if v <= math.MaxUint8 {
			r.fail(invalidScalarf("non-minimal uint16 header"))
		}
		return maj, v
	case low == 26:
		buf := r.readN(4)
		if r.err != nil {
			return 0, 0
		}
		v := uint64(buf[0])<<24 | uint64(buf[1])<<16 | uint64(buf[2])<<8 | uint64(buf[3])
		if v <= math.MaxUint16 {
			r.fail(invalidScalarf("non-minimal uint32 header"))
		}
		return maj, v
	case low == 27:
		buf := r.readN(8)
		if r.err != nil {
			return 0, 0
		}
		var v uint64
		for _, c := range buf {
			v = v<<8 | uint64(c)
		}
		if v <= math.MaxUint32 {
			r.fail(invalidScalarf("non-minimal uint64 header"))
		}
		return maj, v
	default:
		r.fail(invalidScalarf("indefinite-length or reserved header 0x%x", b))
		return 0, 0
	}
}

func (r *Reader) expect(maj byte) uint64 {
	gotMaj, extra := r.header()
	if r.err != nil {
		return 0
	}
	if gotMaj != maj {
		r.fail(invalidScalarf("expected major type %d, got %d", maj, gotMaj))
		return 0
	}
	return extra
}

// ReadArray reads an array header and returns the element count.
func (r *Reader) ReadArray() uint64 {
	return r.expect(majArray)
}

// ExpectArray reads an array header and fails unless it has exactly n
// elements. Fixed-shape tuple records use this to reject drifted layouts.
func (r *Reader) ExpectArray(n uint64) {
	got := r.ReadArray()
	if r.err == nil && got != n {
		r.fail(invalidScalarf("expected tuple of %d fields, got %d", n, got))
	}
}

// ReadUint64 reads an unsigned integer.
func (r *Reader) ReadUint64() uint64 {
	return r.expect(majUnsigned)
}

// ReadInt64 reads a signed integer.
func (r *Reader) ReadInt64() int64 {
	maj, extra := r.header()
	if r.err != nil {
		return 0
	}
	switch maj {
	case majUnsigned:
		if extra > math.MaxInt64 {
			r.fail(invalidScalarf("positive integer overflows int64"))
			return 0
		}
		return int64(extra)
	case majNegative:
		if extra > math.MaxInt64 {
			r.fail(invalidScalarf("negative integer overflows int64"))
			return 0
		}
		return -1 - int64(extra)
	default:
		r.fail(invalidScalarf("expected integer, got major type %d", maj))
		return 0
	}
}

// ReadBytes reads a byte string of at most max bytes. The returned slice is a
// copy, safe to retain.
func (r *Reader) ReadBytes(max uint64) []byte {
	n := r.expect(majBytes)
	if r.err != nil {
		return nil
	}
	if n > max {
		r.fail(invalidScalarf("byte string of %d bytes exceeds limit %d", n, max))
		return nil
	}
	raw := r.readN(int(n))
	if r.err != nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, raw)
	return out
}

// ReadString reads a text string of at most max bytes.
func (r *Reader) ReadString(max uint64) string {
	n := r.expect(majText)
	if r.err != nil {
		return ""
	}
	if n > max {
		r.fail(invalidScalarf("string of %d bytes exceeds limit %d", n, max))
		return ""
	}
	raw := r.readN(int(n))
	if r.err != nil {
		return ""
	}
	if !utf8.Valid(raw) {
		r.fail(invalidScalarf("text string is not valid UTF-8"))
		return ""
	}
	return string(raw)
}

// ReadBool reads a boolean.
func (r *Reader) ReadBool() bool {
	maj, extra := r.header()
	if r.err != nil {
		return false
	}
	if maj != majOther || (extra != simpleFalse && extra != simpleTrue) {
		r.fail(invalidScalarf("expected bool"))
		return false
	}
	return extra == simpleTrue
}

// ReadCid reads a tag-42 content identifier.
func (r *Reader) ReadCid() cid.Cid {
	tag := r.expect(majTag)
	if r.err != nil {
		return cid.Undef
	}
	if tag != cidTag {
		r.fail(&UnknownTagError{Tag: tag})
		return cid.Undef
	}
	raw := r.ReadBytes(maxCidLength)
	if r.err != nil {
		return cid.Undef
	}
	if len(raw) == 0 || raw[0] != 0 {
		r.fail(invalidScalarf("cid byte string missing multibase prefix"))
		return cid.Undef
	}
	c, err := cid.Cast(raw[1:])
	if err != nil {
		r.fail(invalidScalarf("malformed cid: %v", err))
		return cid.Undef
	}
	return c
}

// ReadOptionalCid reads either null or a tag-42 content identifier, returning
// nil for null.
func (r *Reader) ReadOptionalCid() *cid.Cid {
	if b, ok := r.peekByte(); ok && b == nullByte {
		r.pos++
		return nil
	}
	c := r.ReadCid()
	if r.err != nil {
		return nil
	}
	return &c
}

// ReadNull consumes a null.
func (r *Reader) ReadNull() {
	maj, extra := r.header()
	if r.err == nil && (maj != majOther || extra != simpleNull) {
		r.fail(invalidScalarf("expected null"))
	}
}

// PeekNull reports whether the next item is null without consuming it.
func (r *Reader) PeekNull() bool {
	b, ok := r.peekByte()
	return ok && b == nullByte
}

// PeekMajor reports the major type of the next item without consuming it.
// Union shapes (link-or-bucket, string-or-bytes) branch on this.
func (r *Reader) PeekMajor() (byte, bool) {
	b, ok := r.peekByte()
	return b >> 5, ok
}

// ReadBigInt reads a sign-prefixed big integer byte string: empty for zero,
// otherwise a sign byte (0 positive, 1 negative) followed by big-endian
// magnitude bytes.
func (r *Reader) ReadBigInt() *big.Int {
	raw := r.ReadBytes(maxBigIntLength)
	if r.err != nil {
		return nil
	}
	if len(raw) == 0 {
		return big.NewInt(0)
	}
	i := new(big.Int).SetBytes(raw[1:])
	switch raw[0] {
	case 0:
	case 1:
		i.Neg(i)
	default:
		r.fail(invalidScalarf("invalid big integer sign byte %d", raw[0]))
		return nil
	}
	if i.Sign() == 0 && len(raw) > 1 {
		r.fail(invalidScalarf("non-canonical zero big integer"))
		return nil
	}
	return i
}

// ReadRaw captures the next complete item, without interpreting it, as raw
// encoded bytes.
func (r *Reader) ReadRaw() []byte {
	start := r.pos
	r.skipItem(0)
	if r.err != nil {
		return nil
	}
	out := make([]byte, r.pos-start)
	copy(out, r.data[start:r.pos])
	return out
}

const maxNestingDepth = 64

func (r *Reader) skipItem(depth int) {
	if depth > maxNestingDepth {
		r.fail(invalidScalarf("nesting exceeds depth %d", maxNestingDepth))
		return
	}
	maj, extra := r.header()
	if r.err != nil {
		return
	}
	switch maj {
	case majUnsigned, majNegative, majOther:
	case majBytes, majText:
		r.readN(int(extra))
	case majArray:
		for i := uint64(0); i < extra && r.err == nil; i++ {
			r.skipItem(depth + 1)
		}
	case majMap:
		for i := uint64(0); i < 2*extra && r.err == nil; i++ {
			r.skipItem(depth + 1)
		}
	case majTag:
		r.skipItem(depth + 1)
	}
}
