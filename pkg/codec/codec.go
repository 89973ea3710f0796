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

// Package codec implements the canonical binary encoding used for all
// persisted records: a strict DAG-CBOR subset with minimal-width headers,
// definite lengths, tuple-encoded structs, tag-42 content identifiers, and
// sign-prefixed big-integer byte strings. Every representable value has
// exactly one encoding, which is what makes content addressing sound.
package codec

// CBOR major types.
const (
	majUnsigned byte = 0
	majNegative byte = 1
	majBytes    byte = 2
	majText     byte = 3
	majArray    byte = 4
	majMap      byte = 5
	majTag      byte = 6
	majOther    byte = 7
)

const (
	simpleFalse = 20
	simpleTrue  = 21
	simpleNull  = 22

	// nullByte is the single-byte encoding of null (major 7, value 22).
	nullByte = 0xf6

	// cidTag is the IPLD content-identifier tag.
	cidTag = 42
)

// Size limits applied while decoding untrusted input.
const (
	maxCidLength    = 100
	maxBigIntLength = 128
	// MaxByteFieldLength bounds variable-length byte fields in records.
	MaxByteFieldLength = 2 << 20
	// MaxStringLength bounds text fields in records.
	MaxStringLength = 256 << 10
	// MaxArrayLength bounds element counts in record-embedded lists.
	MaxArrayLength = 128 << 10
)

// Marshaler is implemented by records that encode themselves onto a Writer.
type Marshaler interface {
	MarshalCBOR(w *Writer)
}

// Unmarshaler is implemented by records that decode themselves from a Reader.
type Unmarshaler interface {
	UnmarshalCBOR(r *Reader)
}

// Encode returns the canonical encoding of v.
func Encode(v Marshaler) ([]byte, error) {
	w := NewWriter()
	v.MarshalCBOR(w)
	return w.Bytes()
}

// Decode decodes data into v. Trailing bytes after the decoded item are
// rejected: a block holds exactly one record.
func Decode(data []byte, v Unmarshaler) error {
	r := NewReader(data)
	v.UnmarshalCBOR(r)
	if err := r.Err(); err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return invalidScalarf("%d trailing bytes after record", r.Remaining())
	}
	return nil
}

// Deferred captures a single item as raw encoded bytes, deferring
// interpretation to the caller.
type Deferred struct {
	Raw []byte
}

func (d *Deferred) UnmarshalCBOR(r *Reader) {
	d.Raw = r.ReadRaw()
}

func (d *Deferred) MarshalCBOR(w *Writer) {
	w.WriteRaw(d.Raw)
}
