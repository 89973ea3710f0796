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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"
	"github.com/multiformats/go-varint"
)

// EamNamespace is the delegated-address namespace managed by the Ethereum
// address manager; its subaddresses are 20-byte Ethereum addresses.
const EamNamespace = 10

const ethAddressLength = 20

// EthAddressFromDelegated maps an f4 address in the EAM namespace to its
// Ethereum form.
func EthAddressFromDelegated(a address.Address) (common.Address, error) {
	if a.Protocol() != address.Delegated {
		return common.Address{}, fmt.Errorf("address %s is not delegated", a)
	}
	payload := a.Payload()
	namespace, n, err := varint.FromUvarint(payload)
	if err != nil {
		return common.Address{}, err
	}
	if namespace != EamNamespace {
		return common.Address{}, fmt.Errorf("address %s is not in the EAM namespace", a)
	}
	sub := payload[n:]
	if len(sub) != ethAddressLength {
		return common.Address{}, fmt.Errorf("address %s has a %d-byte subaddress, want %d", a, len(sub), ethAddressLength)
	}
	return common.BytesToAddress(sub), nil
}

// DelegatedFromEthAddress maps an Ethereum address to its f4 form in the EAM
// namespace.
func DelegatedFromEthAddress(e common.Address) (address.Address, error) {
	return address.NewDelegatedAddress(EamNamespace, e.Bytes())
}
