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

// Package smoothing holds the alpha-beta filter estimate record persisted by
// the reward and power actors.
package smoothing

import (
	"github.com/cerc-io/fil-state-service/pkg/big"
	"github.com/cerc-io/fil-state-service/pkg/codec"
)

// FilterEstimate is a smoothed position/velocity pair in Q.128 fixed point.
type FilterEstimate struct {
	PositionEstimate big.Int
	VelocityEstimate big.Int
}

func (fe *FilterEstimate) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(2)
	fe.PositionEstimate.UnmarshalCBOR(r)
	fe.VelocityEstimate.UnmarshalCBOR(r)
}

func (fe *FilterEstimate) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(2)
	fe.PositionEstimate.MarshalCBOR(w)
	fe.VelocityEstimate.MarshalCBOR(w)
}
