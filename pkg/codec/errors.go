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
	"errors"
	"fmt"
)

// ErrTruncatedInput is returned when the input ends before a complete item
// could be decoded. A decode that fails this way never yields a partially
// populated record.
var ErrTruncatedInput = errors.New("codec: truncated input")

// UnknownTagError is returned when a semantic tag other than the ones this
// codec understands (tag 42 for content identifiers) is encountered.
type UnknownTagError struct {
	Tag uint64
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("codec: unknown tag %d", e.Tag)
}

// InvalidScalarError is returned when a header or scalar value is malformed:
// wrong major type, non-canonical encoding, indefinite length, or a value out
// of range for the target type.
type InvalidScalarError struct {
	Reason string
}

func (e *InvalidScalarError) Error() string {
	return "codec: invalid scalar: " + e.Reason
}

func invalidScalarf(format string, args ...interface{}) error {
	return &InvalidScalarError{Reason: fmt.Sprintf(format, args...)}
}

// IsDecodeError reports whether err originated in this codec, as opposed to a
// store or domain-invariant failure.
func IsDecodeError(err error) bool {
	if errors.Is(err, ErrTruncatedInput) {
		return true
	}
	var ut *UnknownTagError
	if errors.As(err, &ut) {
		return true
	}
	var is *InvalidScalarError
	return errors.As(err, &is)
}
