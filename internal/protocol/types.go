package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimMode tells the orchestrator how a claim is carried on-chain.
type ClaimMode string

const (
	// ClaimModeDirect repoints the token's reward and vesting roles to the claimer
	ClaimModeDirect ClaimMode = "direct"
	// ClaimModeRouter points the launch's fee router at the claimer
	ClaimModeRouter ClaimMode = "router"
)

type RecipientRole string

const (
	RoleRewardRecipient RecipientRole = "reward_recipient"
	RoleVaultAdmin      RecipientRole = "vault_admin"
)

// TokenMeta is the token metadata handed to a launch protocol.
type TokenMeta struct {
	Name         string
	Symbol       string
	ImageURL     string
	TargetHandle string
}

// DeployResult is the outcome of a successful deployment.
type DeployResult struct {
	TokenAddress common.Address
	TxHash       common.Hash
	PoolID       *common.Hash
	// RouterAddress is set by protocols that route fees through a BeneficiaryFeeRouter
	RouterAddress *common.Address
	RouterTxHash  *common.Hash
}

// Validate rejects results that carry zero addresses or hashes.
func (r *DeployResult) Validate() error {
	if r == nil {
		return newError(ErrorKindInvalidResult, "deploy returned no result", nil)
	}
	if r.TokenAddress == (common.Address{}) {
		return newError(ErrorKindInvalidResult, "deploy returned zero token address", nil)
	}
	if r.TxHash == (common.Hash{}) {
		return newError(ErrorKindInvalidResult, "deploy returned zero transaction hash", nil)
	}
	if r.RouterAddress != nil && *r.RouterAddress == (common.Address{}) {
		return newError(ErrorKindInvalidResult, "deploy returned zero router address", nil)
	}
	return nil
}

type TxResult struct {
	TxHash common.Hash
}

// FeeResult is the outcome of a fee collection. TxHash is nil when nothing
// was collected and no transaction was sent.
type FeeResult struct {
	Amount *big.Int
	Fees0  *big.Int
	Fees1  *big.Int
	TxHash *common.Hash
}

// Collected reports whether the call moved a non-zero amount in a mined transaction.
func (r *FeeResult) Collected() bool {
	return r != nil && r.TxHash != nil && r.Amount != nil && r.Amount.Sign() > 0
}

type RouterDeployment struct {
	Address common.Address
	TxHash  common.Hash
}

// Adapter is a launch protocol backend. One implementation is selected at
// start-up; every write is signed by the injected admin account.
type Adapter interface {
	Name() string
	ClaimMode() ClaimMode
	Deploy(ctx context.Context, meta TokenMeta, requestKey string) (*DeployResult, error)
	RepointRecipient(ctx context.Context, token common.Address, role RecipientRole, newRecipient common.Address) (*TxResult, error)
	CollectFees(ctx context.Context, token common.Address) (*FeeResult, error)
	AvailableVested(ctx context.Context, token common.Address) (*big.Int, error)
	// Router is nil for protocols without a fee router
	Router() FeeRouter
}

// FeeRouter manages per-launch BeneficiaryFeeRouter contracts.
type FeeRouter interface {
	Deploy(ctx context.Context) (*RouterDeployment, error)
	SetRecipient(ctx context.Context, router, recipient common.Address) (*TxResult, error)
	// Forward returns nil without sending a transaction when the router has
	// no recipient or holds no balance.
	Forward(ctx context.Context, router common.Address) (*TxResult, error)
	Recipient(ctx context.Context, router common.Address) (common.Address, error)
	Balance(ctx context.Context, router common.Address) (*big.Int, error)
}

type ErrorKind string

const (
	ErrorKindReverted      ErrorKind = "reverted"
	ErrorKindRPC           ErrorKind = "rpc"
	ErrorKindInvalidResult ErrorKind = "invalid_result"
	ErrorKindConfig        ErrorKind = "config"
	ErrorKindUnsupported   ErrorKind = "unsupported"
)

// Error is the failure side of every adapter call.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the adapter error kind carried by err, or "" when err is not an adapter error.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}
