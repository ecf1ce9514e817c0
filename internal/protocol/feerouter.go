package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/profile-launchpad/internal/chain"
	"github.com/rxtech-lab/profile-launchpad/internal/contracts"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"go.uber.org/zap"
)

// FeeRouterSolcVersion is the compiler release used for the embedded router source
const FeeRouterSolcVersion = "0.8.27"

// CompileFeeRouter compiles the embedded BeneficiaryFeeRouter source and
// returns its creation bytecode.
func CompileFeeRouter(version string) ([]byte, error) {
	compiled, err := utils.CompileContract(version, contracts.FeeRouterSource, contracts.FeeRouterContractName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile fee router: %w", err)
	}
	return compiled.Bytecode, nil
}

type feeRouter struct {
	client   chain.Client
	abi      abi.ABI
	bytecode []byte
	asset    common.Address
	logger   *zap.Logger
}

// NewFeeRouter returns a FeeRouter that deploys bytecode and forwards balances of asset (WETH).
func NewFeeRouter(client chain.Client, bytecode []byte, asset common.Address, logger *zap.Logger) (FeeRouter, error) {
	if len(bytecode) == 0 {
		return nil, newError(ErrorKindConfig, "fee router bytecode is empty", nil)
	}
	if asset == (common.Address{}) {
		return nil, newError(ErrorKindConfig, "fee router asset address is not configured", nil)
	}
	parsed, err := contracts.LoadABI(contracts.BeneficiaryFeeRouter)
	if err != nil {
		return nil, newError(ErrorKindConfig, "failed to load fee router ABI", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &feeRouter{
		client:   client,
		abi:      parsed,
		bytecode: bytecode,
		asset:    asset,
		logger:   logger.Named("fee_router"),
	}, nil
}

func (r *feeRouter) bind(router common.Address) *boundContract {
	return &boundContract{name: contracts.BeneficiaryFeeRouter, abi: r.abi, address: router, client: r.client}
}

// Deploy creates a router owned by the admin account with no recipient.
func (r *feeRouter) Deploy(ctx context.Context) (*RouterDeployment, error) {
	args, err := r.abi.Pack("", r.client.AdminAddress())
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to encode fee router constructor", err)
	}
	code := make([]byte, 0, len(r.bytecode)+len(args))
	code = append(code, r.bytecode...)
	code = append(code, args...)

	receipt, err := r.client.Deploy(ctx, code)
	if err != nil {
		return nil, classify("fee router deploy", err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, newError(ErrorKindInvalidResult, "fee router deploy returned no contract address", nil)
	}

	r.logger.Info("fee router deployed",
		zap.String("router", receipt.ContractAddress.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return &RouterDeployment{Address: receipt.ContractAddress, TxHash: receipt.TxHash}, nil
}

func (r *feeRouter) SetRecipient(ctx context.Context, router, recipient common.Address) (*TxResult, error) {
	receipt, err := r.bind(router).transact(ctx, "setRecipient", recipient)
	if err != nil {
		return nil, err
	}
	r.logger.Info("fee router recipient set",
		zap.String("router", router.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return &TxResult{TxHash: receipt.TxHash}, nil
}

func (r *feeRouter) Forward(ctx context.Context, router common.Address) (*TxResult, error) {
	recipient, err := r.Recipient(ctx, router)
	if err != nil {
		return nil, err
	}
	if recipient == (common.Address{}) {
		return nil, nil
	}

	balance, err := r.Balance(ctx, router)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, nil
	}

	receipt, err := r.bind(router).transact(ctx, "forward", r.asset)
	if err != nil {
		return nil, err
	}
	r.logger.Info("fee router forwarded",
		zap.String("router", router.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", balance.String()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return &TxResult{TxHash: receipt.TxHash}, nil
}

func (r *feeRouter) Recipient(ctx context.Context, router common.Address) (common.Address, error) {
	values, err := r.bind(router).call(ctx, "recipient")
	if err != nil {
		return common.Address{}, err
	}
	recipient, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, newError(ErrorKindInvalidResult, "unexpected recipient type", nil)
	}
	return recipient, nil
}

func (r *feeRouter) Balance(ctx context.Context, router common.Address) (*big.Int, error) {
	balance, err := r.client.BalanceOf(ctx, r.asset, router)
	if err != nil {
		return nil, classify("asset balanceOf", err)
	}
	return balance, nil
}
