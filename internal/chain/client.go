package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

const erc20BalanceOfABI = `[{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

// Client is the read client plus the single admin signer for the target chain.
// Every write is signed by the admin account and returns only after the
// receipt is available.
type Client interface {
	AdminAddress() common.Address
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error)
	Deploy(ctx context.Context, code []byte) (*types.Receipt, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
}

// Backend is the subset of ethclient.Client used by evmClient.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type evmClient struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
	logger  *zap.Logger

	// txMu serializes nonce assignment and submission for the admin account
	txMu sync.Mutex
}

// Dial connects to rpcURL and binds the admin key. chainID of zero means the
// id is read from the node.
func Dial(ctx context.Context, rpcURL string, chainID int64, privateKeyHex string, logger *zap.Logger) (Client, error) {
	backend, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin private key: %w", err)
	}
	return NewClient(ctx, backend, key, chainID, logger)
}

// NewClient wraps an existing backend.
func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, chainID int64, logger *zap.Logger) (Client, error) {
	id := big.NewInt(chainID)
	if chainID == 0 {
		remote, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		id = remote
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &evmClient{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(id),
		logger:  logger.Named("chain"),
	}, nil
}

func (c *evmClient) AdminAddress() common.Address {
	return c.address
}

func (c *evmClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.address, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", to.Hex(), err)
	}
	return out, nil
}

func (c *evmClient) Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	return c.send(ctx, &to, data)
}

func (c *evmClient) Deploy(ctx context.Context, code []byte) (*types.Receipt, error) {
	receipt, err := c.send(ctx, nil, code)
	if err != nil {
		return nil, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("deployment receipt %s has no contract address", receipt.TxHash.Hex())
	}
	return receipt, nil
}

func (c *evmClient) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := parsed.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf: %w", err)
	}
	out, err := c.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf: %w", err)
	}
	return values[0].(*big.Int), nil
}

func (c *evmClient) send(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	signed, err := c.submit(ctx, to, data)
	if err != nil {
		return nil, err
	}

	receipt, err := bind.WaitMined(ctx, c.backend, signed)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, signed.Hash().Hex())
	}
	c.logger.Debug("transaction mined",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, nil
}

// submit builds, signs and broadcasts a dynamic fee transaction while holding txMu.
func (c *evmClient) submit(ctx context.Context, to *common.Address, data []byte) (*types.Transaction, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      c.address,
		To:        to,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		Nonce:     nonce,
		To:        to,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Gas:       gas * 6 / 5,
		Data:      data,
	})
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Info("transaction submitted",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce))
	return signed, nil
}
