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

package hamt

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// CorruptNodeError reports a node whose bytes decoded but whose structure
// violates the trie's shape rules: bitmap width out of range, pointer count
// disagreeing with the bitmap population, empty or oversized buckets, or
// misordered bucket keys. The address identifies the offending block; Cause
// carries the specific violation.
type CorruptNodeError struct {
	Cid   cid.Cid
	Cause error
}

func (e *CorruptNodeError) Error() string {
	return fmt.Sprintf("hamt: corrupt node %s: %v", e.Cid, e.Cause)
}

func (e *CorruptNodeError) Unwrap() error {
	return e.Cause
}

// ErrMaxDepth is returned when a traversal consumes the entire key digest
// without bottoming out, which cannot happen in a well-formed trie.
var ErrMaxDepth = fmt.Errorf("hamt: exceeded maximum trie depth")

// shape violations wrapped into CorruptNodeError by the node loader
var (
	errEmptyBucket     = fmt.Errorf("empty bucket")
	errOversizedBucket = fmt.Errorf("oversized bucket")
	errUnsortedBucket  = fmt.Errorf("bucket keys out of order")
	errBitmapMismatch  = fmt.Errorf("pointer count disagrees with bitmap population")
)
