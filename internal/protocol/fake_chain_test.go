package protocol

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type sentTx struct {
	To   *common.Address
	Data []byte
}

// fakeChain is an in-memory chain.Client keyed by contract address and method selector.
type fakeChain struct {
	mu sync.Mutex

	admin    common.Address
	reads    map[string][]byte
	readErrs map[string]error
	logs     map[string][]*types.Log
	txErrs   map[string]error
	balances map[common.Address]*big.Int

	deployAddress common.Address
	deployErr     error

	sent []sentTx
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		admin:         common.HexToAddress("0x00000000000000000000000000000000000000ad"),
		reads:         map[string][]byte{},
		readErrs:      map[string]error{},
		logs:          map[string][]*types.Log{},
		txErrs:        map[string]error{},
		balances:      map[common.Address]*big.Int{},
		deployAddress: common.HexToAddress("0x00000000000000000000000000000000000000fe"),
	}
}

func methodKey(to common.Address, contract abi.ABI, method string) string {
	return to.Hex() + ":" + hex.EncodeToString(contract.Methods[method].ID)
}

func dataKey(to common.Address, data []byte) string {
	if len(data) < 4 {
		return to.Hex() + ":"
	}
	return to.Hex() + ":" + hex.EncodeToString(data[:4])
}

// setRead registers the outputs returned by a view call.
func (f *fakeChain) setRead(to common.Address, contract abi.ABI, method string, values ...interface{}) {
	out, err := contract.Methods[method].Outputs.Pack(values...)
	if err != nil {
		panic(err)
	}
	f.reads[methodKey(to, contract, method)] = out
}

func (f *fakeChain) AdminAddress() common.Address {
	return f.admin
}

func (f *fakeChain) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dataKey(to, data)
	if err := f.readErrs[key]; err != nil {
		return nil, err
	}
	out, ok := f.reads[key]
	if !ok {
		return nil, fmt.Errorf("no read registered for %s", key)
	}
	return out, nil
}

func (f *fakeChain) Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dataKey(to, data)
	if err := f.txErrs[key]; err != nil {
		return nil, err
	}
	addr := to
	f.sent = append(f.sent, sentTx{To: &addr, Data: data})
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: f.nextHash(),
		Logs:   f.logs[key],
	}, nil
}

func (f *fakeChain) Deploy(ctx context.Context, code []byte) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deployErr != nil {
		return nil, f.deployErr
	}
	f.sent = append(f.sent, sentTx{Data: code})
	return &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		TxHash:          f.nextHash(),
		ContractAddress: f.deployAddress,
	}, nil
}

func (f *fakeChain) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if balance, ok := f.balances[holder]; ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) nextHash() common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", len(f.sent))))
}

func (f *fakeChain) sentTo(to common.Address) []sentTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentTx
	for _, tx := range f.sent {
		if tx.To != nil && *tx.To == to {
			out = append(out, tx)
		}
	}
	return out
}
