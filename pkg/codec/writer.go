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
	"bytes"
	"math"
	"math/big"

	"github.com/ipfs/go-cid"
)

// Writer produces canonical CBOR. Like Reader it carries a sticky error so
// record encoders can emit field-by-field and check once.
type Writer struct {
	buf bytes.Buffer
	err error
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Bytes returns the encoded buffer, or the first error encountered.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

func (w *Writer) header(maj byte, val uint64) {
	if w.err != nil {
		return
	}
	switch {
	case val < 24:
		w.buf.WriteByte(maj<<5 | byte(val))
	case val <= math.MaxUint8:
		w.buf.WriteByte(maj<<5 | 24)
		w.buf.WriteByte(byte(val))
	case val <= math.MaxUint16:
		w.buf.WriteByte(maj<<5 | 25)
		w.buf.WriteByte(byte(val >> 8))
		w.buf.WriteByte(byte(val))
	case val <= math.MaxUint32:
		w.buf.WriteByte(maj<<5 | 26)
		w.buf.WriteByte(byte(val >> 24))
		w.buf.WriteByte(byte(val >> 16))
		w.buf.WriteByte(byte(val >> 8))
		w.buf.WriteByte(byte(val))
	default:
		w.buf.WriteByte(maj<<5 | 27)
		for shift := 56; shift >= 0; shift -= 8 {
			w.buf.WriteByte(byte(val >> uint(shift)))
		}
	}
}

// WriteArray writes an array header for n elements.
func (w *Writer) WriteArray(n uint64) {
	w.header(majArray, n)
}

func (w *Writer) WriteUint64(v uint64) {
	w.header(majUnsigned, v)
}

func (w *Writer) WriteInt64(v int64) {
	if v >= 0 {
		w.header(majUnsigned, uint64(v))
	} else {
		w.header(majNegative, uint64(-(v + 1)))
	}
}

func (w *Writer) WriteBytes(b []byte) {
	w.header(majBytes, uint64(len(b)))
	if w.err == nil {
		w.buf.Write(b)
	}
}

func (w *Writer) WriteString(s string) {
	w.header(majText, uint64(len(s)))
	if w.err == nil {
		w.buf.WriteString(s)
	}
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.header(majOther, simpleTrue)
	} else {
		w.header(majOther, simpleFalse)
	}
}

func (w *Writer) WriteNull() {
	w.header(majOther, simpleNull)
}

func (w *Writer) WriteCid(c cid.Cid) {
	if w.err != nil {
		return
	}
	if !c.Defined() {
		w.fail(invalidScalarf("cannot encode undefined cid"))
		return
	}
	w.header(majTag, cidTag)
	raw := c.Bytes()
	w.header(majBytes, uint64(len(raw)+1))
	w.buf.WriteByte(0)
	w.buf.Write(raw)
}

func (w *Writer) WriteOptionalCid(c *cid.Cid) {
	if c == nil {
		w.WriteNull()
		return
	}
	w.WriteCid(*c)
}

// WriteBigInt writes the sign-prefixed byte-string form read by
// Reader.ReadBigInt. A nil pointer encodes as zero.
func (w *Writer) WriteBigInt(i *big.Int) {
	if i == nil || i.Sign() == 0 {
		w.WriteBytes(nil)
		return
	}
	mag := i.Bytes()
	buf := make([]byte, len(mag)+1)
	if i.Sign() < 0 {
		buf[0] = 1
	}
	copy(buf[1:], mag)
	w.WriteBytes(buf)
}

// WriteRaw appends already-encoded bytes verbatim.
func (w *Writer) WriteRaw(raw []byte) {
	if w.err == nil {
		w.buf.Write(raw)
	}
}
