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

package abi

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"
)

func TestUIntKeyRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1 << 20, 1<<63 + 5} {
		got, err := ParseUIntKey(UIntKey(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}

	_, err := ParseUIntKey(append(UIntKey(5), 0x00))
	require.Error(t, err)
}

func TestAddrKeyRoundTrip(t *testing.T) {
	a, err := address.NewIDAddress(1234)
	require.NoError(t, err)

	got, err := ParseAddrKey(AddrKey(a))
	require.NoError(t, err)
	require.Equal(t, a, got)

	key, err := IdAddrKey(a)
	require.NoError(t, err)
	require.Equal(t, AddrKey(a), key)

	// non-ID addresses must not silently become trie keys for the actor map
	pk, err := address.NewSecp256k1Address([]byte("pubkey bytes"))
	require.NoError(t, err)
	_, err = IdAddrKey(pk)
	require.Error(t, err)
}

func TestSectorAndDealKeys(t *testing.T) {
	require.Equal(t, uint64(42), SectorKey(SectorNumber(42)))
	require.Equal(t, uint64(7), DealKey(DealID(7)))
}

func TestEthDelegatedRoundTrip(t *testing.T) {
	eth := common.HexToAddress("0xd4c5fb16488Aa48081296299d54b0c648C9333dA")

	f4, err := DelegatedFromEthAddress(eth)
	require.NoError(t, err)
	require.Equal(t, address.Delegated, f4.Protocol())

	back, err := EthAddressFromDelegated(f4)
	require.NoError(t, err)
	require.Equal(t, eth, back)
}

func TestEthAddressFromDelegatedRejections(t *testing.T) {
	id, err := address.NewIDAddress(10)
	require.NoError(t, err)
	_, err = EthAddressFromDelegated(id)
	require.Error(t, err)

	// wrong namespace
	other, err := address.NewDelegatedAddress(99, make([]byte, 20))
	require.NoError(t, err)
	_, err = EthAddressFromDelegated(other)
	require.Error(t, err)

	// wrong subaddress length
	short, err := address.NewDelegatedAddress(EamNamespace, make([]byte, 12))
	require.NoError(t, err)
	_, err = EthAddressFromDelegated(short)
	require.Error(t, err)
}
