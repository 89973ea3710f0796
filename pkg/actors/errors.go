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

package actors

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// UnsupportedVersionError reports a request for a bundle version this service
// does not carry schemas for.
type UnsupportedVersionError struct {
	Version Version
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("actors: unsupported bundle version %d", int(e.Version))
}

// UnknownCodeError reports a code address absent from every loaded manifest.
type UnknownCodeError struct {
	Code cid.Cid
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("actors: code %s not in any loaded manifest", e.Code)
}

// InvariantViolationError reports decoded state that breaks a cross-field or
// cross-collection rule. The bytes were well-formed; the semantics are not.
type InvariantViolationError struct {
	Kind Kind
	Msg  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("actors: %s state invariant violated: %s", e.Kind, e.Msg)
}

// Violation builds an InvariantViolationError.
func Violation(kind Kind, format string, args ...interface{}) error {
	return &InvariantViolationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
