package protocol

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/profile-launchpad/internal/chain"
	"github.com/rxtech-lab/profile-launchpad/internal/contracts"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var testToken = common.HexToAddress("0x1234567890123456789012345678901234567890")

type ClankerAdapterTestSuite struct {
	suite.Suite
	chain        *fakeChain
	cfg          ClankerConfig
	adapter      Adapter
	factoryABI   abi.ABI
	lockerABI    abi.ABI
	feeLockerABI abi.ABI
	vaultABI     abi.ABI
}

func (s *ClankerAdapterTestSuite) SetupTest() {
	s.chain = newFakeChain()
	s.cfg = DefaultClankerConfig()
	s.cfg.LpLocker = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	s.cfg.Hook = common.HexToAddress("0x00000000000000000000000000000000000000c2")

	adapter, err := NewClankerAdapter(s.cfg, s.chain, zap.NewNop())
	s.Require().NoError(err)
	s.adapter = adapter

	s.factoryABI = contracts.MustLoadABI(contracts.ClankerFactory)
	s.lockerABI = contracts.MustLoadABI(contracts.ClankerLpLocker)
	s.feeLockerABI = contracts.MustLoadABI(contracts.ClankerFeeLocker)
	s.vaultABI = contracts.MustLoadABI(contracts.ClankerVault)
}

func (s *ClankerAdapterTestSuite) tokenCreatedLog(poolID common.Hash) *types.Log {
	event := s.factoryABI.Events["TokenCreated"]
	data, err := event.Inputs.NonIndexed().Pack(
		s.chain.admin,
		"https://example.com/alice.png",
		"Alice Coin",
		"ALICE",
		"{}",
		"{}",
		big.NewInt(s.cfg.StartingTick),
		s.cfg.Hook,
		[32]byte(poolID),
		s.cfg.PairedToken,
		s.cfg.LpLocker,
		common.Address{},
		big.NewInt(0),
		[]common.Address{s.cfg.Vault},
	)
	s.Require().NoError(err)
	return &types.Log{
		Address: s.cfg.Factory,
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(testToken.Bytes()),
			common.BytesToHash(s.chain.admin.Bytes()),
		},
		Data: data,
	}
}

func (s *ClankerAdapterTestSuite) meta() TokenMeta {
	return TokenMeta{Name: "Alice Coin", Symbol: "ALICE", ImageURL: "https://example.com/alice.png", TargetHandle: "alice"}
}

func (s *ClankerAdapterTestSuite) TestNameAndMode() {
	s.Equal(ClankerName, s.adapter.Name())
	s.Equal(ClaimModeDirect, s.adapter.ClaimMode())
	s.Nil(s.adapter.Router())
}

func (s *ClankerAdapterTestSuite) TestConfigValidation() {
	cfg := DefaultClankerConfig()
	_, err := NewClankerAdapter(cfg, s.chain, nil)
	s.Require().Error(err)
	s.Equal(ErrorKindConfig, KindOf(err))

	cfg = s.cfg
	cfg.RewardBps = []uint16{5000, 4000}
	_, err = NewClankerAdapter(cfg, s.chain, nil)
	s.Require().Error(err)
	s.Equal(ErrorKindConfig, KindOf(err))
}

func (s *ClankerAdapterTestSuite) TestDeployParsesTokenCreated() {
	poolID := common.HexToHash("0xbeef")
	s.chain.logs[methodKey(s.cfg.Factory, s.factoryABI, "deployToken")] = []*types.Log{s.tokenCreatedLog(poolID)}

	result, err := s.adapter.Deploy(context.Background(), s.meta(), "0123456789abcdef0123456789abcdef")
	s.Require().NoError(err)
	s.Equal(testToken, result.TokenAddress)
	s.NotEqual(common.Hash{}, result.TxHash)
	s.Require().NotNil(result.PoolID)
	s.Equal(poolID, *result.PoolID)
	s.Nil(result.RouterAddress)
}

func (s *ClankerAdapterTestSuite) TestDeploySaltFollowsRequestKey() {
	s.chain.logs[methodKey(s.cfg.Factory, s.factoryABI, "deployToken")] = []*types.Log{s.tokenCreatedLog(common.HexToHash("0x01"))}
	ctx := context.Background()

	_, err := s.adapter.Deploy(ctx, s.meta(), "key-a")
	s.Require().NoError(err)
	_, err = s.adapter.Deploy(ctx, s.meta(), "key-a")
	s.Require().NoError(err)
	_, err = s.adapter.Deploy(ctx, s.meta(), "key-b")
	s.Require().NoError(err)

	sent := s.chain.sentTo(s.cfg.Factory)
	s.Require().Len(sent, 3)
	s.Equal(sent[0].Data, sent[1].Data)
	s.NotEqual(sent[0].Data, sent[2].Data)
}

func (s *ClankerAdapterTestSuite) TestDeployWithoutEventFails() {
	_, err := s.adapter.Deploy(context.Background(), s.meta(), "key")
	s.Require().Error(err)
	s.Equal(ErrorKindInvalidResult, KindOf(err))
}

func (s *ClankerAdapterTestSuite) TestDeployRevert() {
	s.chain.txErrs[methodKey(s.cfg.Factory, s.factoryABI, "deployToken")] = fmt.Errorf("%w: 0x02", chain.ErrReverted)

	_, err := s.adapter.Deploy(context.Background(), s.meta(), "key")
	s.Require().Error(err)
	s.Equal(ErrorKindReverted, KindOf(err))
}

func (s *ClankerAdapterTestSuite) TestRepointRecipientRoles() {
	ctx := context.Background()

	_, err := s.adapter.RepointRecipient(ctx, testToken, RoleRewardRecipient, testRecipient)
	s.Require().NoError(err)
	expected, err := s.lockerABI.Pack("updateRewardRecipient", testToken, big.NewInt(0), testRecipient)
	s.Require().NoError(err)
	sent := s.chain.sentTo(s.cfg.LpLocker)
	s.Require().Len(sent, 1)
	s.Equal(expected, sent[0].Data)

	_, err = s.adapter.RepointRecipient(ctx, testToken, RoleVaultAdmin, testRecipient)
	s.Require().NoError(err)
	expected, err = s.vaultABI.Pack("editAllocationAdmin", testToken, testRecipient)
	s.Require().NoError(err)
	sent = s.chain.sentTo(s.cfg.Vault)
	s.Require().Len(sent, 1)
	s.Equal(expected, sent[0].Data)

	_, err = s.adapter.RepointRecipient(ctx, testToken, RecipientRole("unknown"), testRecipient)
	s.Require().Error(err)
	s.Equal(ErrorKindUnsupported, KindOf(err))
}

func (s *ClankerAdapterTestSuite) TestCollectFeesSkipsWhenNothingAvailable() {
	s.chain.setRead(s.cfg.FeeLocker, s.feeLockerABI, "availableFees", big.NewInt(0))

	result, err := s.adapter.CollectFees(context.Background(), testToken)
	s.Require().NoError(err)
	s.Nil(result.TxHash)
	s.False(result.Collected())
	s.Empty(s.chain.sentTo(s.cfg.FeeLocker))
}

func (s *ClankerAdapterTestSuite) TestCollectFeesClaims() {
	s.chain.setRead(s.cfg.FeeLocker, s.feeLockerABI, "availableFees", big.NewInt(42))

	result, err := s.adapter.CollectFees(context.Background(), testToken)
	s.Require().NoError(err)
	s.True(result.Collected())
	s.Equal(int64(42), result.Amount.Int64())

	expected, err := s.feeLockerABI.Pack("claim", s.chain.admin, testToken)
	s.Require().NoError(err)
	sent := s.chain.sentTo(s.cfg.FeeLocker)
	s.Require().Len(sent, 1)
	s.Equal(expected, sent[0].Data)
}

func (s *ClankerAdapterTestSuite) TestAvailableVested() {
	s.chain.setRead(s.cfg.Vault, s.vaultABI, "amountAvailableToClaim", big.NewInt(9))

	amount, err := s.adapter.AvailableVested(context.Background(), testToken)
	s.Require().NoError(err)
	s.Equal(int64(9), amount.Int64())
}

func TestClankerAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(ClankerAdapterTestSuite))
}
