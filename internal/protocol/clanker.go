package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rxtech-lab/profile-launchpad/internal/chain"
	"github.com/rxtech-lab/profile-launchpad/internal/contracts"
	"go.uber.org/zap"
)

const ClankerName = "clanker"

// creatorRewardIndex is the locker reward slot that follows the claimer.
// Slot 1 stays with the admin account as platform revenue.
const creatorRewardIndex = 0

// ClankerConfig holds the deployed Clanker v4 contracts and launch parameters.
type ClankerConfig struct {
	ChainID     int64
	Factory     common.Address
	LpLocker    common.Address
	FeeLocker   common.Address
	Vault       common.Address
	Hook        common.Address
	MevModule   common.Address
	PairedToken common.Address

	StartingTick int64
	TickSpacing  int64
	// ClankerFeeBps and PairedFeeBps are the static swap fees in basis points
	ClankerFeeBps int64
	PairedFeeBps  int64
	// RewardBps splits LP rewards between the creator slot and the platform slot
	RewardBps []uint16

	VaultBps        uint16
	LockupDuration  int64
	VestingDuration int64
	Interface       string
}

// DefaultClankerConfig returns the Base mainnet contracts and launch parameters.
func DefaultClankerConfig() ClankerConfig {
	return ClankerConfig{
		ChainID:         8453,
		Factory:         common.HexToAddress("0xE85A59c628F7d27878ACeB4bf3b35733630083a9"),
		FeeLocker:       common.HexToAddress("0xF3622742b1E446D92e45E22923Ef11C2fcD55D68"),
		Vault:           common.HexToAddress("0x8E845EAd15737bF71904A30BdDD3aEE76d6ADF6C"),
		PairedToken:     common.HexToAddress("0x4200000000000000000000000000000000000006"),
		StartingTick:    -230400,
		TickSpacing:     200,
		ClankerFeeBps:   125,
		PairedFeeBps:    125,
		RewardBps:       []uint16{8000, 2000},
		VaultBps:        1000,
		LockupDuration:  2592000,
		VestingDuration: 2592000,
		Interface:       "profile-launchpad",
	}
}

func (c ClankerConfig) validate() error {
	required := map[string]common.Address{
		"factory":      c.Factory,
		"lp locker":    c.LpLocker,
		"fee locker":   c.FeeLocker,
		"vault":        c.Vault,
		"hook":         c.Hook,
		"paired token": c.PairedToken,
	}
	for name, addr := range required {
		if addr == (common.Address{}) {
			return newError(ErrorKindConfig, fmt.Sprintf("clanker %s address is not configured", name), nil)
		}
	}
	var total uint32
	for _, bps := range c.RewardBps {
		total += uint32(bps)
	}
	if len(c.RewardBps) <= creatorRewardIndex || total != 10000 {
		return newError(ErrorKindConfig, "clanker reward bps must cover the creator slot and sum to 10000", nil)
	}
	return nil
}

type clankerTokenConfig struct {
	TokenAdmin         common.Address
	Name               string
	Symbol             string
	Salt               [32]byte
	Image              string
	Metadata           string
	Context            string
	OriginatingChainId *big.Int
}

type clankerPoolConfig struct {
	Hook                  common.Address
	PairedToken           common.Address
	TickIfToken0IsClanker *big.Int
	TickSpacing           *big.Int
	PoolData              []byte
}

type clankerLockerConfig struct {
	Locker           common.Address
	RewardAdmins     []common.Address
	RewardRecipients []common.Address
	RewardBps        []uint16
	TickLower        []*big.Int
	TickUpper        []*big.Int
	PositionBps      []uint16
	LockerData       []byte
}

type clankerMevModuleConfig struct {
	MevModule     common.Address
	MevModuleData []byte
}

type clankerExtensionConfig struct {
	Extension     common.Address
	MsgValue      *big.Int
	ExtensionBps  uint16
	ExtensionData []byte
}

type clankerDeploymentConfig struct {
	TokenConfig      clankerTokenConfig
	PoolConfig       clankerPoolConfig
	LockerConfig     clankerLockerConfig
	MevModuleConfig  clankerMevModuleConfig
	ExtensionConfigs []clankerExtensionConfig
}

type clankerAdapter struct {
	cfg       ClankerConfig
	client    chain.Client
	factory   *boundContract
	lpLocker  *boundContract
	feeLocker *boundContract
	vault     *boundContract
	logger    *zap.Logger
}

// NewClankerAdapter returns the direct-recipient adapter. Claims repoint the
// locker reward slot and the vault allocation admin to the claimer.
func NewClankerAdapter(cfg ClankerConfig, client chain.Client, logger *zap.Logger) (Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bind := func(name string, address common.Address) (*boundContract, error) {
		parsed, err := contracts.LoadABI(name)
		if err != nil {
			return nil, newError(ErrorKindConfig, "failed to load ABI", err)
		}
		return &boundContract{name: name, abi: parsed, address: address, client: client}, nil
	}

	a := &clankerAdapter{cfg: cfg, client: client, logger: logger.Named(ClankerName)}
	var err error
	if a.factory, err = bind(contracts.ClankerFactory, cfg.Factory); err != nil {
		return nil, err
	}
	if a.lpLocker, err = bind(contracts.ClankerLpLocker, cfg.LpLocker); err != nil {
		return nil, err
	}
	if a.feeLocker, err = bind(contracts.ClankerFeeLocker, cfg.FeeLocker); err != nil {
		return nil, err
	}
	if a.vault, err = bind(contracts.ClankerVault, cfg.Vault); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *clankerAdapter) Name() string {
	return ClankerName
}

func (a *clankerAdapter) ClaimMode() ClaimMode {
	return ClaimModeDirect
}

func (a *clankerAdapter) Router() FeeRouter {
	return nil
}

func (a *clankerAdapter) Deploy(ctx context.Context, meta TokenMeta, requestKey string) (*DeployResult, error) {
	config, err := a.deploymentConfig(meta, requestKey)
	if err != nil {
		return nil, err
	}

	receipt, err := a.factory.transact(ctx, "deployToken", config)
	if err != nil {
		return nil, err
	}

	log, err := a.factory.findLog(receipt, "TokenCreated")
	if err != nil {
		return nil, err
	}
	if len(log.Topics) < 2 {
		return nil, newError(ErrorKindInvalidResult, "TokenCreated log has no token topic", nil)
	}
	fields := map[string]interface{}{}
	if err := a.factory.abi.UnpackIntoMap(fields, "TokenCreated", log.Data); err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to decode TokenCreated", err)
	}

	result := &DeployResult{
		TokenAddress: common.BytesToAddress(log.Topics[1].Bytes()),
		TxHash:       receipt.TxHash,
	}
	if raw, ok := fields["poolId"].([32]byte); ok {
		poolID := common.Hash(raw)
		result.PoolID = &poolID
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	a.logger.Info("token deployed",
		zap.String("token", result.TokenAddress.Hex()),
		zap.String("tx_hash", result.TxHash.Hex()),
		zap.String("request_key", requestKey))
	return result, nil
}

func (a *clankerAdapter) deploymentConfig(meta TokenMeta, requestKey string) (*clankerDeploymentConfig, error) {
	admin := a.client.AdminAddress()

	metadata, err := json.Marshal(map[string]string{
		"description": fmt.Sprintf("Launched for @%s", meta.TargetHandle),
	})
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to encode token metadata", err)
	}
	tokenContext, err := json.Marshal(map[string]string{
		"interface": a.cfg.Interface,
		"platform":  "x",
		"messageId": requestKey,
	})
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to encode token context", err)
	}

	poolData, err := encodeClankerPoolData(a.cfg.ClankerFeeBps, a.cfg.PairedFeeBps)
	if err != nil {
		return nil, err
	}
	vaultData, err := encodeArgs(
		[]string{"address", "uint256", "uint256"},
		admin, big.NewInt(a.cfg.LockupDuration), big.NewInt(a.cfg.VestingDuration),
	)
	if err != nil {
		return nil, err
	}

	slots := len(a.cfg.RewardBps)
	admins := make([]common.Address, slots)
	recipients := make([]common.Address, slots)
	for i := range admins {
		admins[i] = admin
		recipients[i] = admin
	}

	return &clankerDeploymentConfig{
		TokenConfig: clankerTokenConfig{
			TokenAdmin:         admin,
			Name:               meta.Name,
			Symbol:             meta.Symbol,
			Salt:               crypto.Keccak256Hash([]byte(requestKey)),
			Image:              meta.ImageURL,
			Metadata:           string(metadata),
			Context:            string(tokenContext),
			OriginatingChainId: big.NewInt(a.cfg.ChainID),
		},
		PoolConfig: clankerPoolConfig{
			Hook:                  a.cfg.Hook,
			PairedToken:           a.cfg.PairedToken,
			TickIfToken0IsClanker: big.NewInt(a.cfg.StartingTick),
			TickSpacing:           big.NewInt(a.cfg.TickSpacing),
			PoolData:              poolData,
		},
		LockerConfig: clankerLockerConfig{
			Locker:           a.cfg.LpLocker,
			RewardAdmins:     admins,
			RewardRecipients: recipients,
			RewardBps:        a.cfg.RewardBps,
			TickLower:        []*big.Int{big.NewInt(a.cfg.StartingTick)},
			TickUpper:        []*big.Int{big.NewInt(887200)},
			PositionBps:      []uint16{10000},
			LockerData:       []byte{},
		},
		MevModuleConfig: clankerMevModuleConfig{
			MevModule:     a.cfg.MevModule,
			MevModuleData: []byte{},
		},
		ExtensionConfigs: []clankerExtensionConfig{{
			Extension:     a.cfg.Vault,
			MsgValue:      big.NewInt(0),
			ExtensionBps:  a.cfg.VaultBps,
			ExtensionData: vaultData,
		}},
	}, nil
}

func (a *clankerAdapter) RepointRecipient(ctx context.Context, token common.Address, role RecipientRole, newRecipient common.Address) (*TxResult, error) {
	var (
		receipt *types.Receipt
		err     error
	)
	switch role {
	case RoleRewardRecipient:
		receipt, err = a.lpLocker.transact(ctx, "updateRewardRecipient", token, big.NewInt(creatorRewardIndex), newRecipient)
	case RoleVaultAdmin:
		receipt, err = a.vault.transact(ctx, "editAllocationAdmin", token, newRecipient)
	default:
		return nil, newError(ErrorKindUnsupported, fmt.Sprintf("clanker has no recipient role %q", role), nil)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("recipient repointed",
		zap.String("token", token.Hex()),
		zap.String("role", string(role)),
		zap.String("recipient", newRecipient.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return &TxResult{TxHash: receipt.TxHash}, nil
}

// CollectFees claims the admin's accrued rewards from the fee locker. No
// transaction is sent when nothing is available.
func (a *clankerAdapter) CollectFees(ctx context.Context, token common.Address) (*FeeResult, error) {
	admin := a.client.AdminAddress()
	values, err := a.feeLocker.call(ctx, "availableFees", admin, token)
	if err != nil {
		return nil, err
	}
	available, ok := values[0].(*big.Int)
	if !ok {
		return nil, newError(ErrorKindInvalidResult, "unexpected availableFees type", nil)
	}
	if available.Sign() == 0 {
		return &FeeResult{Amount: big.NewInt(0)}, nil
	}

	receipt, err := a.feeLocker.transact(ctx, "claim", admin, token)
	if err != nil {
		return nil, err
	}
	hash := receipt.TxHash
	return &FeeResult{Amount: available, Fees0: available, TxHash: &hash}, nil
}

func (a *clankerAdapter) AvailableVested(ctx context.Context, token common.Address) (*big.Int, error) {
	values, err := a.vault.call(ctx, "amountAvailableToClaim", token)
	if err != nil {
		return nil, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, newError(ErrorKindInvalidResult, "unexpected amountAvailableToClaim type", nil)
	}
	return amount, nil
}

// encodeClankerPoolData encodes the static fee hook initialization data.
// Fees are given in basis points and encoded in hundredths of a bip.
func encodeClankerPoolData(clankerFeeBps, pairedFeeBps int64) ([]byte, error) {
	feeData, err := encodeArgs([]string{"uint24", "uint24"},
		big.NewInt(clankerFeeBps*100), big.NewInt(pairedFeeBps*100))
	if err != nil {
		return nil, err
	}
	return encodeArgs([]string{"address", "bytes", "bytes"}, common.Address{}, []byte{}, feeData)
}

// encodeArgs ABI-encodes values of the given elementary types.
func encodeArgs(typeNames []string, values ...interface{}) ([]byte, error) {
	args := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			return nil, newError(ErrorKindConfig, fmt.Sprintf("invalid abi type %s", name), err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	data, err := args.Pack(values...)
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to encode arguments", err)
	}
	return data, nil
}
