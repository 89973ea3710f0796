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

package amt

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// CorruptNodeError reports a node whose bytes decoded but whose structure
// violates the array's shape rules.
type CorruptNodeError struct {
	Cid   cid.Cid
	Cause error
}

func (e *CorruptNodeError) Error() string {
	return fmt.Sprintf("amt: corrupt node %s: %v", e.Cid, e.Cause)
}

func (e *CorruptNodeError) Unwrap() error {
	return e.Cause
}

// ErrIndexOutOfRange is returned for indexes past MaxIndex.
var ErrIndexOutOfRange = fmt.Errorf("amt: index out of range")

// shape violations wrapped into CorruptNodeError by the node loader
var (
	errInvalidBitWidth = fmt.Errorf("bit width out of range")
	errInvalidHeight   = fmt.Errorf("height out of range")
	errBitmapMismatch  = fmt.Errorf("entry count disagrees with bitmap population")
	errLeafWithLinks   = fmt.Errorf("leaf node carries links")
	errInteriorWithValues = fmt.Errorf("interior node carries values")
	errEmptyNode       = fmt.Errorf("node with no entries")
	errTrailingBytes   = fmt.Errorf("trailing bytes after node")
)
