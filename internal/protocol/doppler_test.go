package protocol

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/profile-launchpad/internal/contracts"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type DopplerAdapterTestSuite struct {
	suite.Suite
	chain          *fakeChain
	cfg            DopplerConfig
	adapter        Adapter
	airlockABI     abi.ABI
	initializerABI abi.ABI
	derc20ABI      abi.ABI
	airlockOwner   common.Address
	poolID         common.Hash
}

func (s *DopplerAdapterTestSuite) SetupTest() {
	s.chain = newFakeChain()
	s.cfg = DefaultDopplerConfig()
	s.cfg.Airlock = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	s.cfg.TokenFactory = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	s.cfg.GovernanceFactory = common.HexToAddress("0x00000000000000000000000000000000000000d3")
	s.cfg.Initializer = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	s.cfg.Migrator = common.HexToAddress("0x00000000000000000000000000000000000000d5")
	s.cfg.DopplerHook = common.HexToAddress("0x00000000000000000000000000000000000000d6")

	router, err := NewFeeRouter(s.chain, []byte{0x60, 0x80}, s.cfg.Numeraire, zap.NewNop())
	s.Require().NoError(err)
	adapter, err := NewDopplerAdapter(s.cfg, s.chain, router, zap.NewNop())
	s.Require().NoError(err)
	s.adapter = adapter

	s.airlockABI = contracts.MustLoadABI(contracts.DopplerAirlock)
	s.initializerABI = contracts.MustLoadABI(contracts.DopplerMulticurveInitializer)
	s.derc20ABI = contracts.MustLoadABI(contracts.DERC20)

	s.airlockOwner = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	s.poolID = common.HexToHash("0xfeed")
	s.chain.setRead(s.cfg.Airlock, s.airlockABI, "owner", s.airlockOwner)
	s.chain.setRead(s.cfg.Initializer, s.initializerABI, "getPoolId", [32]byte(s.poolID))
}

func (s *DopplerAdapterTestSuite) createLog() *types.Log {
	event := s.airlockABI.Events["Create"]
	data, err := event.Inputs.NonIndexed().Pack(testToken, s.cfg.Initializer, s.cfg.DopplerHook)
	s.Require().NoError(err)
	return &types.Log{
		Address: s.cfg.Airlock,
		Topics:  []common.Hash{event.ID, common.BytesToHash(s.cfg.Numeraire.Bytes())},
		Data:    data,
	}
}

func (s *DopplerAdapterTestSuite) meta() TokenMeta {
	return TokenMeta{Name: "Alice Coin", Symbol: "ALICE", ImageURL: "https://example.com/alice.png", TargetHandle: "alice"}
}

func (s *DopplerAdapterTestSuite) TestNameAndMode() {
	s.Equal(DopplerName, s.adapter.Name())
	s.Equal(ClaimModeRouter, s.adapter.ClaimMode())
	s.NotNil(s.adapter.Router())
}

func (s *DopplerAdapterTestSuite) TestConfigValidation() {
	_, err := NewDopplerAdapter(DefaultDopplerConfig(), s.chain, s.adapter.Router(), nil)
	s.Require().Error(err)
	s.Equal(ErrorKindConfig, KindOf(err))

	_, err = NewDopplerAdapter(s.cfg, s.chain, nil, nil)
	s.Require().Error(err)
	s.Equal(ErrorKindConfig, KindOf(err))

	cfg := s.cfg
	cfg.ProtocolShareWad = wadPercent(1)
	_, err = NewDopplerAdapter(cfg, s.chain, s.adapter.Router(), nil)
	s.Require().Error(err)
}

func (s *DopplerAdapterTestSuite) TestDeployCreatesRouterBeforeToken() {
	s.chain.logs[methodKey(s.cfg.Airlock, s.airlockABI, "create")] = []*types.Log{s.createLog()}

	result, err := s.adapter.Deploy(context.Background(), s.meta(), "0123456789abcdef0123456789abcdef")
	s.Require().NoError(err)
	s.Equal(testToken, result.TokenAddress)
	s.Require().NotNil(result.PoolID)
	s.Equal(s.poolID, *result.PoolID)
	s.Require().NotNil(result.RouterAddress)
	s.Equal(s.chain.deployAddress, *result.RouterAddress)
	s.Require().NotNil(result.RouterTxHash)

	s.Require().Len(s.chain.sent, 2)
	s.Nil(s.chain.sent[0].To)
	s.Require().NotNil(s.chain.sent[1].To)
	s.Equal(s.cfg.Airlock, *s.chain.sent[1].To)
}

func (s *DopplerAdapterTestSuite) TestDeployRouterFailureSkipsCreate() {
	s.chain.deployErr = fmt.Errorf("insufficient funds")

	_, err := s.adapter.Deploy(context.Background(), s.meta(), "key")
	s.Require().Error(err)
	s.Equal(ErrorKindRPC, KindOf(err))
	s.Empty(s.chain.sentTo(s.cfg.Airlock))
}

func (s *DopplerAdapterTestSuite) TestBeneficiariesAreSortedAndSumToWad() {
	adapter := s.adapter.(*dopplerAdapter)
	router := common.HexToAddress("0x0000000000000000000000000000000000000001")

	list := adapter.beneficiaries(s.airlockOwner, router)
	s.Require().Len(list, 2)
	s.Equal(router, list[0].Beneficiary)
	s.Equal(s.airlockOwner, list[1].Beneficiary)

	total := new(big.Int).Add(list[0].Shares, list[1].Shares)
	s.Equal(0, total.Cmp(wad))
	s.Equal(0, list[1].Shares.Cmp(wadPercent(5)))
}

func (s *DopplerAdapterTestSuite) TestCollectFeesSkipsEmptyPool() {
	s.chain.setRead(s.cfg.Initializer, s.initializerABI, "collectFees", big.NewInt(0), big.NewInt(0))

	result, err := s.adapter.CollectFees(context.Background(), testToken)
	s.Require().NoError(err)
	s.False(result.Collected())
	s.Empty(s.chain.sentTo(s.cfg.Initializer))
}

func (s *DopplerAdapterTestSuite) TestCollectFeesSendsTransaction() {
	s.chain.setRead(s.cfg.Initializer, s.initializerABI, "collectFees", big.NewInt(3), big.NewInt(4))

	result, err := s.adapter.CollectFees(context.Background(), testToken)
	s.Require().NoError(err)
	s.True(result.Collected())
	s.Equal(int64(7), result.Amount.Int64())
	s.Equal(int64(3), result.Fees0.Int64())
	s.Equal(int64(4), result.Fees1.Int64())

	expected, err := s.initializerABI.Pack("collectFees", [32]byte(s.poolID))
	s.Require().NoError(err)
	sent := s.chain.sentTo(s.cfg.Initializer)
	s.Require().Len(sent, 1)
	s.Equal(expected, sent[0].Data)
}

func (s *DopplerAdapterTestSuite) TestRepointRecipientUnsupported() {
	_, err := s.adapter.RepointRecipient(context.Background(), testToken, RoleRewardRecipient, testRecipient)
	s.Require().Error(err)
	s.Equal(ErrorKindUnsupported, KindOf(err))
}

func (s *DopplerAdapterTestSuite) TestAvailableVested() {
	s.chain.setRead(testToken, s.derc20ABI, "computeAvailableVestedAmount", big.NewInt(11))

	amount, err := s.adapter.AvailableVested(context.Background(), testToken)
	s.Require().NoError(err)
	s.Equal(int64(11), amount.Int64())
}

func TestDopplerAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(DopplerAdapterTestSuite))
}
