package protocol

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rxtech-lab/profile-launchpad/internal/chain"
	"github.com/rxtech-lab/profile-launchpad/internal/contracts"
	"go.uber.org/zap"
)

const DopplerName = "doppler"

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func wadPercent(p int64) *big.Int {
	return new(big.Int).Div(new(big.Int).Mul(wad, big.NewInt(p)), big.NewInt(100))
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), wad)
}

// DopplerConfig holds the Doppler multicurve contracts and sale parameters.
type DopplerConfig struct {
	Airlock           common.Address
	TokenFactory      common.Address
	GovernanceFactory common.Address
	Initializer       common.Address
	Migrator          common.Address
	DopplerHook       common.Address
	Numeraire         common.Address

	InitialSupply   *big.Int
	NumTokensToSell *big.Int
	VestedAmount    *big.Int
	CliffSeconds    int64
	VestingSeconds  int64
	SwapFee         int64
	TickSpacing     int64
	// ProtocolShareWad is the airlock owner's beneficiary share; the router gets the rest
	ProtocolShareWad *big.Int
	LpPercentWad     *big.Int
}

// DefaultDopplerConfig returns the Base sale parameters. Contract addresses
// must be supplied by configuration.
func DefaultDopplerConfig() DopplerConfig {
	return DopplerConfig{
		Numeraire:        common.HexToAddress("0x4200000000000000000000000000000000000006"),
		InitialSupply:    tokens(1_000_000_000),
		NumTokensToSell:  tokens(900_000_000),
		VestedAmount:     tokens(100_000_000),
		CliffSeconds:     2592000,
		VestingSeconds:   2592000,
		SwapFee:          3000,
		TickSpacing:      200,
		ProtocolShareWad: wadPercent(5),
		LpPercentWad:     wadPercent(10),
	}
}

func (c DopplerConfig) validate() error {
	required := map[string]common.Address{
		"airlock":            c.Airlock,
		"token factory":      c.TokenFactory,
		"governance factory": c.GovernanceFactory,
		"initializer":        c.Initializer,
		"migrator":           c.Migrator,
		"doppler hook":       c.DopplerHook,
		"numeraire":          c.Numeraire,
	}
	for name, addr := range required {
		if addr == (common.Address{}) {
			return newError(ErrorKindConfig, fmt.Sprintf("doppler %s address is not configured", name), nil)
		}
	}
	if c.ProtocolShareWad == nil || c.ProtocolShareWad.Cmp(wadPercent(5)) < 0 || c.ProtocolShareWad.Cmp(wad) >= 0 {
		return newError(ErrorKindConfig, "doppler protocol share must be at least 5% and below 100%", nil)
	}
	total := new(big.Int).Add(c.NumTokensToSell, c.VestedAmount)
	if total.Cmp(c.InitialSupply) > 0 {
		return newError(ErrorKindConfig, "doppler sale and vested amounts exceed the initial supply", nil)
	}
	return nil
}

type dopplerCreateData struct {
	InitialSupply         *big.Int
	NumTokensToSell       *big.Int
	Numeraire             common.Address
	TokenFactory          common.Address
	TokenFactoryData      []byte
	GovernanceFactory     common.Address
	GovernanceFactoryData []byte
	PoolInitializer       common.Address
	PoolInitializerData   []byte
	LiquidityMigrator     common.Address
	LiquidityMigratorData []byte
	Integrator            common.Address
	Salt                  [32]byte
}

type dopplerCurve struct {
	TickLower    *big.Int
	TickUpper    *big.Int
	NumPositions uint16
	Shares       *big.Int
}

type dopplerBeneficiary struct {
	Beneficiary common.Address
	Shares      *big.Int
}

type dopplerAdapter struct {
	cfg         DopplerConfig
	client      chain.Client
	router      FeeRouter
	airlock     *boundContract
	initializer *boundContract
	derc20      abi.ABI
	logger      *zap.Logger
}

// NewDopplerAdapter returns the fee-router adapter. Pool beneficiaries are
// immutable, so every launch gets its own router as the creator beneficiary.
func NewDopplerAdapter(cfg DopplerConfig, client chain.Client, router FeeRouter, logger *zap.Logger) (Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if router == nil {
		return nil, newError(ErrorKindConfig, "doppler requires a fee router", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	airlockABI, err := contracts.LoadABI(contracts.DopplerAirlock)
	if err != nil {
		return nil, newError(ErrorKindConfig, "failed to load ABI", err)
	}
	initializerABI, err := contracts.LoadABI(contracts.DopplerMulticurveInitializer)
	if err != nil {
		return nil, newError(ErrorKindConfig, "failed to load ABI", err)
	}
	derc20ABI, err := contracts.LoadABI(contracts.DERC20)
	if err != nil {
		return nil, newError(ErrorKindConfig, "failed to load ABI", err)
	}

	return &dopplerAdapter{
		cfg:    cfg,
		client: client,
		router: router,
		airlock: &boundContract{
			name: contracts.DopplerAirlock, abi: airlockABI, address: cfg.Airlock, client: client,
		},
		initializer: &boundContract{
			name: contracts.DopplerMulticurveInitializer, abi: initializerABI, address: cfg.Initializer, client: client,
		},
		derc20: derc20ABI,
		logger: logger.Named(DopplerName),
	}, nil
}

func (a *dopplerAdapter) Name() string {
	return DopplerName
}

func (a *dopplerAdapter) ClaimMode() ClaimMode {
	return ClaimModeRouter
}

func (a *dopplerAdapter) Router() FeeRouter {
	return a.router
}

// Deploy creates the launch's fee router first so it can be named as the
// creator beneficiary of the pool.
func (a *dopplerAdapter) Deploy(ctx context.Context, meta TokenMeta, requestKey string) (*DeployResult, error) {
	values, err := a.airlock.call(ctx, "owner")
	if err != nil {
		return nil, err
	}
	airlockOwner, ok := values[0].(common.Address)
	if !ok {
		return nil, newError(ErrorKindInvalidResult, "unexpected airlock owner type", nil)
	}

	router, err := a.router.Deploy(ctx)
	if err != nil {
		return nil, err
	}

	createData, err := a.createData(meta, requestKey, airlockOwner, router.Address)
	if err != nil {
		return nil, err
	}
	receipt, err := a.airlock.transact(ctx, "create", createData)
	if err != nil {
		a.logger.Warn("token creation failed after router deploy",
			zap.String("router", router.Address.Hex()),
			zap.String("request_key", requestKey),
			zap.Error(err))
		return nil, err
	}

	log, err := a.airlock.findLog(receipt, "Create")
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := a.airlock.abi.UnpackIntoMap(fields, "Create", log.Data); err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to decode Create", err)
	}
	asset, ok := fields["asset"].(common.Address)
	if !ok {
		return nil, newError(ErrorKindInvalidResult, "Create log has no asset", nil)
	}

	poolID, err := a.poolID(ctx, asset)
	if err != nil {
		return nil, err
	}

	routerAddress := router.Address
	routerTxHash := router.TxHash
	result := &DeployResult{
		TokenAddress:  asset,
		TxHash:        receipt.TxHash,
		PoolID:        &poolID,
		RouterAddress: &routerAddress,
		RouterTxHash:  &routerTxHash,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	a.logger.Info("token deployed",
		zap.String("token", asset.Hex()),
		zap.String("pool_id", poolID.Hex()),
		zap.String("router", routerAddress.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.String("request_key", requestKey))
	return result, nil
}

func (a *dopplerAdapter) createData(meta TokenMeta, requestKey string, airlockOwner, router common.Address) (*dopplerCreateData, error) {
	admin := a.client.AdminAddress()

	tokenFactoryData, err := encodeArgs(
		[]string{"string", "string", "uint256", "uint256", "address[]", "uint256[]", "string"},
		meta.Name,
		meta.Symbol,
		big.NewInt(0),
		big.NewInt(a.cfg.CliffSeconds+a.cfg.VestingSeconds),
		[]common.Address{admin},
		[]*big.Int{a.cfg.VestedAmount},
		meta.ImageURL,
	)
	if err != nil {
		return nil, err
	}

	hookData, err := encodeArgs(
		[]string{"address", "uint24", "uint256", "uint256", "uint256", "uint256"},
		admin,
		big.NewInt(a.cfg.SwapFee),
		big.NewInt(0),
		big.NewInt(0),
		new(big.Int).Sub(wad, a.cfg.LpPercentWad),
		a.cfg.LpPercentWad,
	)
	if err != nil {
		return nil, err
	}

	initializerData, err := a.encodeInitializerData(airlockOwner, router, hookData)
	if err != nil {
		return nil, err
	}

	return &dopplerCreateData{
		InitialSupply:         a.cfg.InitialSupply,
		NumTokensToSell:       a.cfg.NumTokensToSell,
		Numeraire:             a.cfg.Numeraire,
		TokenFactory:          a.cfg.TokenFactory,
		TokenFactoryData:      tokenFactoryData,
		GovernanceFactory:     a.cfg.GovernanceFactory,
		GovernanceFactoryData: []byte{},
		PoolInitializer:       a.cfg.Initializer,
		PoolInitializerData:   initializerData,
		LiquidityMigrator:     a.cfg.Migrator,
		LiquidityMigratorData: []byte{},
		Integrator:            admin,
		Salt:                  crypto.Keccak256Hash([]byte(requestKey)),
	}, nil
}

// beneficiaries returns the pool beneficiaries sorted by address, as the
// initializer requires.
func (a *dopplerAdapter) beneficiaries(airlockOwner, router common.Address) []dopplerBeneficiary {
	list := []dopplerBeneficiary{
		{Beneficiary: airlockOwner, Shares: a.cfg.ProtocolShareWad},
		{Beneficiary: router, Shares: new(big.Int).Sub(wad, a.cfg.ProtocolShareWad)},
	}
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i].Beneficiary.Bytes(), list[j].Beneficiary.Bytes()) < 0
	})
	return list
}

func (a *dopplerAdapter) curves() []dopplerCurve {
	return []dopplerCurve{
		{TickLower: big.NewInt(160000), TickUpper: big.NewInt(240000), NumPositions: 10, Shares: wadPercent(50)},
		{TickLower: big.NewInt(200000), TickUpper: big.NewInt(240000), NumPositions: 10, Shares: wadPercent(30)},
		{TickLower: big.NewInt(220000), TickUpper: big.NewInt(240000), NumPositions: 10, Shares: wadPercent(20)},
	}
}

func (a *dopplerAdapter) encodeInitializerData(airlockOwner, router common.Address, hookData []byte) ([]byte, error) {
	curveType, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "tickLower", Type: "int24"},
		{Name: "tickUpper", Type: "int24"},
		{Name: "numPositions", Type: "uint16"},
		{Name: "shares", Type: "uint256"},
	})
	if err != nil {
		return nil, newError(ErrorKindConfig, "invalid curve type", err)
	}
	beneficiaryType, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "beneficiary", Type: "address"},
		{Name: "shares", Type: "uint96"},
	})
	if err != nil {
		return nil, newError(ErrorKindConfig, "invalid beneficiary type", err)
	}
	uint24Type, _ := abi.NewType("uint24", "", nil)
	int24Type, _ := abi.NewType("int24", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)

	args := abi.Arguments{
		{Name: "fee", Type: uint24Type},
		{Name: "tickSpacing", Type: int24Type},
		{Name: "curves", Type: curveType},
		{Name: "beneficiaries", Type: beneficiaryType},
		{Name: "dopplerHook", Type: addressType},
		{Name: "onInitializationCalldata", Type: bytesType},
	}
	data, err := args.Pack(
		big.NewInt(a.cfg.SwapFee),
		big.NewInt(a.cfg.TickSpacing),
		a.curves(),
		a.beneficiaries(airlockOwner, router),
		a.cfg.DopplerHook,
		hookData,
	)
	if err != nil {
		return nil, newError(ErrorKindInvalidResult, "failed to encode initializer data", err)
	}
	return data, nil
}

func (a *dopplerAdapter) poolID(ctx context.Context, asset common.Address) (common.Hash, error) {
	values, err := a.initializer.call(ctx, "getPoolId", asset)
	if err != nil {
		return common.Hash{}, err
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return common.Hash{}, newError(ErrorKindInvalidResult, "unexpected pool id type", nil)
	}
	poolID := common.Hash(raw)
	if poolID == (common.Hash{}) {
		return common.Hash{}, newError(ErrorKindInvalidResult, "initializer returned zero pool id", nil)
	}
	return poolID, nil
}

// RepointRecipient is unsupported: pool beneficiaries are fixed at creation.
// Claims go through the fee router instead.
func (a *dopplerAdapter) RepointRecipient(ctx context.Context, token common.Address, role RecipientRole, newRecipient common.Address) (*TxResult, error) {
	return nil, newError(ErrorKindUnsupported, "doppler beneficiaries are immutable; use the fee router", nil)
}

// CollectFees collects pool fees and distributes them to the beneficiaries.
// The call is simulated first so no transaction is sent for an empty pool.
func (a *dopplerAdapter) CollectFees(ctx context.Context, token common.Address) (*FeeResult, error) {
	poolID, err := a.poolID(ctx, token)
	if err != nil {
		return nil, err
	}

	values, err := a.initializer.call(ctx, "collectFees", poolID)
	if err != nil {
		return nil, err
	}
	fees0, ok0 := values[0].(*big.Int)
	fees1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, newError(ErrorKindInvalidResult, "unexpected collectFees result", nil)
	}
	total := new(big.Int).Add(fees0, fees1)
	if total.Sign() == 0 {
		return &FeeResult{Amount: total, Fees0: fees0, Fees1: fees1}, nil
	}

	receipt, err := a.initializer.transact(ctx, "collectFees", poolID)
	if err != nil {
		return nil, err
	}
	hash := receipt.TxHash

	a.logger.Info("pool fees collected",
		zap.String("token", token.Hex()),
		zap.String("fees0", fees0.String()),
		zap.String("fees1", fees1.String()),
		zap.String("tx_hash", hash.Hex()))
	return &FeeResult{Amount: total, Fees0: fees0, Fees1: fees1, TxHash: &hash}, nil
}

// AvailableVested returns the vested amount the admin account can release.
func (a *dopplerAdapter) AvailableVested(ctx context.Context, token common.Address) (*big.Int, error) {
	contract := &boundContract{name: contracts.DERC20, abi: a.derc20, address: token, client: a.client}
	values, err := contract.call(ctx, "computeAvailableVestedAmount", a.client.AdminAddress())
	if err != nil {
		return nil, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, newError(ErrorKindInvalidResult, "unexpected vested amount type", nil)
	}
	return amount, nil
}
