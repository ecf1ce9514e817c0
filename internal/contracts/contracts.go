package contracts

import (
	"embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFS embed.FS

//go:embed feerouter/BeneficiaryFeeRouter.sol
var FeeRouterSource string

const FeeRouterContractName = "BeneficiaryFeeRouter"

// Contract names understood by LoadABI
const (
	BeneficiaryFeeRouter         = "BeneficiaryFeeRouter"
	ClankerFactory               = "ClankerFactory"
	ClankerLpLocker              = "ClankerLpLocker"
	ClankerFeeLocker             = "ClankerFeeLocker"
	ClankerVault                 = "ClankerVault"
	DopplerAirlock               = "DopplerAirlock"
	DopplerMulticurveInitializer = "DopplerMulticurveInitializer"
	DERC20                       = "DERC20"
)

// LoadABI parses the embedded ABI for the named contract
func LoadABI(name string) (abi.ABI, error) {
	data, err := abiFS.ReadFile("abi/" + name + ".json")
	if err != nil {
		return abi.ABI{}, fmt.Errorf("unknown contract: %s", name)
	}
	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse %s ABI: %w", name, err)
	}
	return parsed, nil
}

// MustLoadABI is LoadABI for package-level initialization
func MustLoadABI(name string) abi.ABI {
	parsed, err := LoadABI(name)
	if err != nil {
		panic(err)
	}
	return parsed
}
