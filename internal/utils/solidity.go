package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/solc-go"
)

const sourceFileName = "contract.sol"

// CompiledContract is the ABI and creation bytecode of a single contract
type CompiledContract struct {
	ABI      abi.ABI
	Bytecode []byte
}

// CompileContract compiles a self-contained Solidity source and returns the named contract.
// Imports are not resolved.
func CompileContract(version, source, contractName string) (*CompiledContract, error) {
	compiler, err := solc.NewWithVersion(version)
	if err != nil {
		return nil, fmt.Errorf("failed to load solc %s: %w", version, err)
	}

	opts := solc.CompileOptions{
		ImportCallback: func(u string) solc.ImportResult {
			return solc.ImportResult{
				Error: fmt.Sprintf("Import %s not supported", u),
			}
		},
	}
	result, err := compiler.CompileWithOptions(&solc.Input{
		Language: "Solidity",
		Sources: map[string]solc.SourceIn{
			sourceFileName: {
				Content: source,
			},
		},
		Settings: solc.Settings{
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": []string{"abi", "evm.bytecode"},
				},
			},
		},
	}, &opts)
	if err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("compilation errors: %v", result.Errors)
	}

	contract, ok := result.Contracts[sourceFileName][contractName]
	if !ok {
		return nil, fmt.Errorf("contract %s not found in compilation result", contractName)
	}

	abiBytes, err := json.Marshal(contract.ABI)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ABI: %w", err)
	}
	parsedABI, err := abi.JSON(strings.NewReader(string(abiBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	bytecode := common.FromHex(contract.EVM.Bytecode.Object)
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("contract %s has empty bytecode", contractName)
	}

	return &CompiledContract{
		ABI:      parsedABI,
		Bytecode: bytecode,
	}, nil
}
