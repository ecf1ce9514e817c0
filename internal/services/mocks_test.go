package services_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rxtech-lab/profile-launchpad/internal/protocol"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbService, err := services.NewSqliteDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbService.Close() })
	return dbService.GetDB()
}

func identity(externalID string, handle string) *utils.Identity {
	id := &utils.Identity{ExternalID: externalID}
	if handle != "" {
		id.Handle = &handle
	}
	return id
}

func hashOf(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

func addressOf(label string) common.Address {
	return common.BytesToAddress(hashOf(label).Bytes())
}

// mockAdapter implements protocol.Adapter for testing
type mockAdapter struct {
	mu sync.Mutex

	mode   protocol.ClaimMode
	router *mockRouter

	deployErr   error
	repointErrs map[protocol.RecipientRole]error
	collectFees map[common.Address]*big.Int
	collectErrs map[common.Address]error
	collectHook func(token common.Address)

	deployCalls  []string
	repointCalls []protocol.RecipientRole
	collectCalls int
}

func newMockAdapter(mode protocol.ClaimMode) *mockAdapter {
	adapter := &mockAdapter{
		mode:        mode,
		repointErrs: map[protocol.RecipientRole]error{},
		collectFees: map[common.Address]*big.Int{},
		collectErrs: map[common.Address]error{},
	}
	if mode == protocol.ClaimModeRouter {
		adapter.router = newMockRouter()
	}
	return adapter
}

func (m *mockAdapter) Name() string {
	return "mock"
}

func (m *mockAdapter) ClaimMode() protocol.ClaimMode {
	return m.mode
}

func (m *mockAdapter) Router() protocol.FeeRouter {
	if m.router == nil {
		return nil
	}
	return m.router
}

func (m *mockAdapter) Deploy(ctx context.Context, meta protocol.TokenMeta, requestKey string) (*protocol.DeployResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployCalls = append(m.deployCalls, requestKey)
	if m.deployErr != nil {
		return nil, m.deployErr
	}

	poolID := hashOf("pool-" + requestKey)
	result := &protocol.DeployResult{
		TokenAddress: addressOf("token-" + requestKey),
		TxHash:       hashOf("deploy-" + requestKey),
		PoolID:       &poolID,
	}
	if m.router != nil {
		router := addressOf("router-" + requestKey)
		routerTx := hashOf("router-tx-" + requestKey)
		result.RouterAddress = &router
		result.RouterTxHash = &routerTx
	}
	return result, nil
}

func (m *mockAdapter) RepointRecipient(ctx context.Context, token common.Address, role protocol.RecipientRole, newRecipient common.Address) (*protocol.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repointCalls = append(m.repointCalls, role)
	if err := m.repointErrs[role]; err != nil {
		return nil, err
	}
	return &protocol.TxResult{TxHash: hashOf(fmt.Sprintf("repoint-%s-%s", role, token.Hex()))}, nil
}

func (m *mockAdapter) CollectFees(ctx context.Context, token common.Address) (*protocol.FeeResult, error) {
	m.mu.Lock()
	m.collectCalls++
	hook := m.collectHook
	err := m.collectErrs[token]
	amount, ok := m.collectFees[token]
	m.mu.Unlock()

	if hook != nil {
		hook(token)
	}
	if err != nil {
		return nil, err
	}
	if !ok || amount.Sign() == 0 {
		return &protocol.FeeResult{Amount: big.NewInt(0)}, nil
	}
	txHash := hashOf("collect-" + token.Hex())
	return &protocol.FeeResult{Amount: amount, Fees0: amount, TxHash: &txHash}, nil
}

func (m *mockAdapter) AvailableVested(ctx context.Context, token common.Address) (*big.Int, error) {
	return big.NewInt(1000), nil
}

// mockRouter implements protocol.FeeRouter for testing
type mockRouter struct {
	mu sync.Mutex

	recipients map[common.Address]common.Address
	balances   map[common.Address]*big.Int
	setErr     error
	forwardErr error

	setCalls     int
	forwardCalls int
	forwarded    int
}

func newMockRouter() *mockRouter {
	return &mockRouter{
		recipients: map[common.Address]common.Address{},
		balances:   map[common.Address]*big.Int{},
	}
}

func (m *mockRouter) Deploy(ctx context.Context) (*protocol.RouterDeployment, error) {
	return &protocol.RouterDeployment{Address: addressOf("router"), TxHash: hashOf("router")}, nil
}

func (m *mockRouter) SetRecipient(ctx context.Context, router, recipient common.Address) (*protocol.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return nil, m.setErr
	}
	m.recipients[router] = recipient
	return &protocol.TxResult{TxHash: hashOf("set-" + router.Hex())}, nil
}

func (m *mockRouter) Forward(ctx context.Context, router common.Address) (*protocol.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwardCalls++
	if m.forwardErr != nil {
		return nil, m.forwardErr
	}
	recipient := m.recipients[router]
	balance := m.balances[router]
	if recipient == (common.Address{}) || balance == nil || balance.Sign() == 0 {
		return nil, nil
	}
	m.balances[router] = big.NewInt(0)
	m.forwarded++
	return &protocol.TxResult{TxHash: hashOf("forward-" + router.Hex())}, nil
}

func (m *mockRouter) Recipient(ctx context.Context, router common.Address) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipients[router], nil
}

func (m *mockRouter) Balance(ctx context.Context, router common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if balance, ok := m.balances[router]; ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
