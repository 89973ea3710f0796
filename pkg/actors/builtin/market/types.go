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

package market

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/cerc-io/fil-state-service/pkg/abi"
	"github.com/cerc-io/fil-state-service/pkg/codec"
)

// DealLabel is an arbitrary client-supplied tag: either a UTF-8 string or raw
// bytes, and the two are distinct on the wire.
type DealLabel struct {
	s        string
	b        []byte
	isString bool
}

// NewLabelFromString builds a string label.
func NewLabelFromString(s string) DealLabel {
	return DealLabel{s: s, isString: true}
}

// NewLabelFromBytes builds a bytes label.
func NewLabelFromBytes(b []byte) DealLabel {
	return DealLabel{b: b}
}

func (l DealLabel) IsString() bool {
	return l.isString
}

func (l DealLabel) String() (string, bool) {
	return l.s, l.isString
}

func (l DealLabel) Bytes() ([]byte, bool) {
	return l.b, !l.isString
}

func (l *DealLabel) UnmarshalCBOR(r *codec.Reader) {
	maj, ok := r.PeekMajor()
	if !ok {
		r.ReadBytes(0) // force the underlying truncation error
		return
	}
	if maj == 3 {
		l.s = r.ReadString(codec.MaxStringLength)
		l.isString = true
		return
	}
	l.b = r.ReadBytes(codec.MaxByteFieldLength)
	l.isString = false
}

func (l DealLabel) MarshalCBOR(w *codec.Writer) {
	if l.isString {
		w.WriteString(l.s)
		return
	}
	w.WriteBytes(l.b)
}

// DealProposal is the immutable half of a deal.
type DealProposal struct {
	PieceCID             cid.Cid
	PieceSize            abi.PaddedPieceSize
	VerifiedDeal         bool
	Client               address.Address
	Provider             address.Address
	Label                DealLabel
	StartEpoch           abi.ChainEpoch
	EndEpoch             abi.ChainEpoch
	StoragePricePerEpoch abi.TokenAmount
	ProviderCollateral   abi.TokenAmount
	ClientCollateral     abi.TokenAmount
}

func (p *DealProposal) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(11)
	p.PieceCID = r.ReadCid()
	p.PieceSize = abi.PaddedPieceSize(r.ReadUint64())
	p.VerifiedDeal = r.ReadBool()
	p.Client = abi.ReadAddr(r)
	p.Provider = abi.ReadAddr(r)
	p.Label.UnmarshalCBOR(r)
	p.StartEpoch = abi.ChainEpoch(r.ReadInt64())
	p.EndEpoch = abi.ChainEpoch(r.ReadInt64())
	p.StoragePricePerEpoch.UnmarshalCBOR(r)
	p.ProviderCollateral.UnmarshalCBOR(r)
	p.ClientCollateral.UnmarshalCBOR(r)
}

func (p *DealProposal) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(11)
	w.WriteCid(p.PieceCID)
	w.WriteUint64(uint64(p.PieceSize))
	w.WriteBool(p.VerifiedDeal)
	abi.WriteAddr(w, p.Client)
	abi.WriteAddr(w, p.Provider)
	p.Label.MarshalCBOR(w)
	w.WriteInt64(int64(p.StartEpoch))
	w.WriteInt64(int64(p.EndEpoch))
	p.StoragePricePerEpoch.MarshalCBOR(w)
	p.ProviderCollateral.MarshalCBOR(w)
	p.ClientCollateral.MarshalCBOR(w)
}

// DealState is the mutable half of a deal. Epoch fields use -1 for "not
// yet".
type DealState struct {
	SectorStartEpoch abi.ChainEpoch
	LastUpdatedEpoch abi.ChainEpoch
	SlashEpoch       abi.ChainEpoch
}

func (s *DealState) UnmarshalCBOR(r *codec.Reader) {
	r.ExpectArray(3)
	s.SectorStartEpoch = abi.ChainEpoch(r.ReadInt64())
	s.LastUpdatedEpoch = abi.ChainEpoch(r.ReadInt64())
	s.SlashEpoch = abi.ChainEpoch(r.ReadInt64())
}

func (s *DealState) MarshalCBOR(w *codec.Writer) {
	w.WriteArray(3)
	w.WriteInt64(int64(s.SectorStartEpoch))
	w.WriteInt64(int64(s.LastUpdatedEpoch))
	w.WriteInt64(int64(s.SlashEpoch))
}
