package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func IsValidEthereumAddress(address string) bool {
	return common.IsHexAddress(address) && strings.HasPrefix(address, "0x") && len(address) == 42
}

// AddressPtr returns the checksummed hex of a non-zero address, or nil
func AddressPtr(address common.Address) *string {
	if address == (common.Address{}) {
		return nil
	}
	s := address.Hex()
	return &s
}
