package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/profile-launchpad/internal/chain"
)

// boundContract pairs an ABI with a deployed address on the admin client.
type boundContract struct {
	name    string
	abi     abi.ABI
	address common.Address
	client  chain.Client
}

func (b *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, fmt.Sprintf("failed to encode %s.%s", b.name, method), err)
	}
	out, err := b.client.Call(ctx, b.address, data)
	if err != nil {
		return nil, classify(fmt.Sprintf("%s.%s", b.name, method), err)
	}
	values, err := b.abi.Unpack(method, out)
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, fmt.Sprintf("failed to decode %s.%s", b.name, method), err)
	}
	return values, nil
}

func (b *boundContract) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, fmt.Sprintf("failed to encode %s.%s", b.name, method), err)
	}
	receipt, err := b.client.Transact(ctx, b.address, data)
	if err != nil {
		return nil, classify(fmt.Sprintf("%s.%s", b.name, method), err)
	}
	return receipt, nil
}

// findLog returns the first log emitted by the contract for the named event.
func (b *boundContract) findLog(receipt *types.Receipt, event string) (*types.Log, error) {
	ev, ok := b.abi.Events[event]
	if !ok {
		return nil, newError(ErrorKindConfig, fmt.Sprintf("%s has no event %s", b.name, event), nil)
	}
	for _, log := range receipt.Logs {
		if log.Address != b.address || len(log.Topics) == 0 {
			continue
		}
		if log.Topics[0] == ev.ID {
			return log, nil
		}
	}
	return nil, newError(ErrorKindInvalidResult, fmt.Sprintf("%s event not found in %s", event, receipt.TxHash.Hex()), nil)
}

// classify maps a chain client error onto an adapter error kind.
func classify(op string, err error) error {
	if errors.Is(err, chain.ErrReverted) {
		return newError(ErrorKindReverted, op+" reverted", err)
	}
	return newError(ErrorKindRPC, op+" failed", err)
}
