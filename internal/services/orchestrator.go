package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"github.com/rxtech-lab/profile-launchpad/internal/protocol"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Orchestrator runs the launch lifecycle: creation and deployment, claim,
// and the requester's view of both.
type Orchestrator interface {
	CreateLaunch(ctx context.Context, identity *utils.Identity, input CreateLaunchInput) (*models.Launch, error)
	ClaimLaunch(ctx context.Context, identity *utils.Identity, input ClaimLaunchInput) (*models.Launch, error)
	CurrentUser(ctx context.Context, identity *utils.Identity) (*CurrentUser, error)
	AvailableVested(ctx context.Context, launchID string) (*big.Int, error)
}

type OrchestratorParams struct {
	Users     UserService
	Launches  LaunchService
	RateLimit RateLimitService
	Adapter   protocol.Adapter
	Logger    *zap.Logger
	// Now stamps launch creation and claim times; defaults to the UTC wall clock
	Now func() time.Time
}

type orchestrator struct {
	users     UserService
	launches  LaunchService
	rateLimit RateLimitService
	adapter   protocol.Adapter
	logger    *zap.Logger
	now       func() time.Time
	validator *validator.Validate
}

func NewOrchestrator(params OrchestratorParams) Orchestrator {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	return &orchestrator{
		users:     params.Users,
		launches:  params.Launches,
		rateLimit: params.RateLimit,
		adapter:   params.Adapter,
		logger:    logger.Named("orchestrator"),
		now:       now,
		validator: validate,
	}
}

func (o *orchestrator) CreateLaunch(ctx context.Context, identity *utils.Identity, input CreateLaunchInput) (*models.Launch, error) {
	if identity == nil || identity.ExternalID == "" {
		return nil, ErrUnauthorized
	}
	input.Normalize()
	if err := o.validate(input); err != nil {
		return nil, err
	}

	user, err := o.users.UpsertUser(identity, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	allowed, err := o.rateLimit.Allow(user.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		message := ErrRateLimited.Message
		if wait, err := o.rateLimit.RetryAfter(user.ID); err == nil && wait > 0 {
			message = fmt.Sprintf("one launch per 24 hours, try again in %s", wait.Round(time.Minute))
		}
		return nil, &Error{Kind: KindRateLimited, Message: message}
	}

	launch := &models.Launch{
		LauncherUserID:    user.ID,
		TargetHandle:      input.TargetHandle,
		TargetDisplayName: input.TargetDisplayName,
		TargetAvatarURL:   input.TargetAvatarURL,
		TokenName:         input.TokenName,
		TokenSymbol:       input.TokenSymbol,
		TokenImageURL:     input.TokenImageURL,
		Status:            models.LaunchStatusPending,
		CreatedAt:         o.now(),
	}
	if err := o.launches.CreateLaunch(launch); err != nil {
		return nil, fmt.Errorf("failed to create launch: %w", err)
	}

	if err := o.launches.TransitionStatus(launch.ID, models.LaunchStatusPending, models.LaunchStatusDeploying); err != nil {
		return nil, fmt.Errorf("failed to start deployment: %w", err)
	}

	logger := o.logger.With(zap.String("launch_id", launch.ID), zap.String("adapter", o.adapter.Name()))
	result, deployErr := o.adapter.Deploy(ctx, protocol.TokenMeta{
		Name:         launch.TokenName,
		Symbol:       launch.TokenSymbol,
		ImageURL:     launch.TokenImageURL,
		TargetHandle: launch.TargetHandle,
	}, launch.RequestKey)
	if deployErr == nil {
		deployErr = result.Validate()
	}

	if deployErr != nil {
		logger.Error("deployment failed", zap.Error(deployErr))
		if err := o.launches.MarkFailed(launch.ID, deployErr.Error()); err != nil {
			logger.Error("failed to record failed deployment", zap.Error(err))
		}
		failed, err := o.launches.GetLaunchByID(launch.ID)
		if err != nil {
			failed = launch
		}
		return failed, newError(KindDeploymentFailed, ErrDeploymentFailed.Message, deployErr)
	}

	deployed := DeployedLaunch{
		TokenAddress: result.TokenAddress.Hex(),
		DeployTxHash: result.TxHash.Hex(),
	}
	if result.PoolID != nil {
		poolID := result.PoolID.Hex()
		deployed.PoolID = &poolID
	}
	deployed.FeeRouterAddress = utils.AddressPtr(valueOrZero(result.RouterAddress))

	if err := o.launches.MarkDeployed(launch.ID, deployed); err != nil {
		// the token exists on-chain; the row stays in deploying for reconciliation
		logger.Error("failed to record deployment",
			zap.String("token", deployed.TokenAddress),
			zap.String("tx_hash", deployed.DeployTxHash),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record deployment: %w", err)
	}

	logger.Info("launch deployed",
		zap.String("token", deployed.TokenAddress),
		zap.String("tx_hash", deployed.DeployTxHash))
	return o.launches.GetLaunchByID(launch.ID)
}

func (o *orchestrator) ClaimLaunch(ctx context.Context, identity *utils.Identity, input ClaimLaunchInput) (*models.Launch, error) {
	if identity == nil || identity.ExternalID == "" {
		return nil, ErrUnauthorized
	}
	if !identity.HasHandle() {
		return nil, ErrNoLinkedProfile
	}
	input.Normalize()
	if err := o.validate(input); err != nil {
		return nil, err
	}

	wallet := input.WalletAddress
	user, err := o.users.UpsertUser(identity, &wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	launch, err := o.launches.ClaimLaunch(ClaimRequest{
		LaunchID:      input.LaunchID,
		Handle:        *identity.Handle,
		UserID:        user.ID,
		WalletAddress: wallet,
		ClaimedAt:     o.now(),
	})
	if err != nil {
		return nil, err
	}

	logger := o.logger.With(zap.String("launch_id", launch.ID), zap.String("wallet", wallet))
	switch o.adapter.ClaimMode() {
	case protocol.ClaimModeDirect:
		return o.claimDirect(ctx, logger, launch, user.ID, common.HexToAddress(wallet))
	case protocol.ClaimModeRouter:
		return o.claimViaRouter(ctx, logger, launch, common.HexToAddress(wallet))
	default:
		return nil, fmt.Errorf("unknown claim mode %q", o.adapter.ClaimMode())
	}
}

// claimDirect repoints the token's reward recipient and vault admin. Any
// failure releases the claim.
func (o *orchestrator) claimDirect(ctx context.Context, logger *zap.Logger, launch *models.Launch, userID string, wallet common.Address) (*models.Launch, error) {
	if launch.TokenAddress == nil {
		o.releaseClaim(logger, launch.ID, userID)
		return nil, newError(KindClaimOnChainFailed, "launch has no token address", nil)
	}
	token := common.HexToAddress(*launch.TokenAddress)

	rewardTx, err := o.adapter.RepointRecipient(ctx, token, protocol.RoleRewardRecipient, wallet)
	if err != nil {
		logger.Error("failed to repoint reward recipient", zap.Error(err))
		o.releaseClaim(logger, launch.ID, userID)
		return nil, newError(KindClaimOnChainFailed, ErrClaimOnChainFailed.Message, err)
	}
	vaultTx, err := o.adapter.RepointRecipient(ctx, token, protocol.RoleVaultAdmin, wallet)
	if err != nil {
		logger.Error("failed to repoint vault admin",
			zap.String("reward_tx_hash", rewardTx.TxHash.Hex()),
			zap.Error(err))
		o.releaseClaim(logger, launch.ID, userID)
		return nil, newError(KindClaimOnChainFailed, ErrClaimOnChainFailed.Message, err)
	}

	claimTxHash := rewardTx.TxHash.Hex()
	vaultTxHash := vaultTx.TxHash.Hex()
	if err := o.launches.SetClaimTxHashes(launch.ID, &claimTxHash, &vaultTxHash); err != nil {
		logger.Error("failed to record claim transactions", zap.Error(err))
	}
	logger.Info("launch claimed",
		zap.String("claim_tx_hash", claimTxHash),
		zap.String("vault_claim_tx_hash", vaultTxHash))
	return o.launches.GetLaunchByID(launch.ID)
}

// claimViaRouter points the launch's fee router at the claimer. A failure is
// logged and the claim kept; the fee job retries the router later.
func (o *orchestrator) claimViaRouter(ctx context.Context, logger *zap.Logger, launch *models.Launch, wallet common.Address) (*models.Launch, error) {
	router := o.adapter.Router()
	if router == nil || launch.FeeRouterAddress == nil {
		logger.Warn("claimed launch has no fee router")
		return launch, nil
	}

	tx, err := router.SetRecipient(ctx, common.HexToAddress(*launch.FeeRouterAddress), wallet)
	if err != nil {
		logger.Error("failed to set fee router recipient, claim kept for resync",
			zap.String("router", *launch.FeeRouterAddress),
			zap.Error(err))
		return launch, nil
	}

	txHash := tx.TxHash.Hex()
	if err := o.launches.SetClaimTxHashes(launch.ID, &txHash, nil); err != nil {
		logger.Error("failed to record claim transaction", zap.Error(err))
	}
	if err := o.launches.MarkRouterRecipientSynced(launch.ID); err != nil {
		logger.Error("failed to mark router synced", zap.Error(err))
	}
	logger.Info("launch claimed", zap.String("claim_tx_hash", txHash))
	return o.launches.GetLaunchByID(launch.ID)
}

func (o *orchestrator) releaseClaim(logger *zap.Logger, launchID, userID string) {
	if err := o.launches.ReleaseClaim(launchID, userID); err != nil {
		logger.Error("failed to release claim", zap.Error(err))
	}
}

func (o *orchestrator) CurrentUser(ctx context.Context, identity *utils.Identity) (*CurrentUser, error) {
	if identity == nil || identity.ExternalID == "" {
		return nil, ErrUnauthorized
	}
	user, err := o.users.UpsertUser(identity, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	result := &CurrentUser{User: user, Claimable: []models.Launch{}}
	if identity.HasHandle() {
		if result.Claimable, err = o.launches.ListClaimableLaunches(*identity.Handle); err != nil {
			return nil, fmt.Errorf("failed to list claimable launches: %w", err)
		}
	}
	if result.Claimed, err = o.launches.ListClaimedLaunches(user.ID); err != nil {
		return nil, fmt.Errorf("failed to list claimed launches: %w", err)
	}
	if result.Launched, err = o.launches.ListLaunchesByLauncher(user.ID); err != nil {
		return nil, fmt.Errorf("failed to list launches: %w", err)
	}
	return result, nil
}

func (o *orchestrator) AvailableVested(ctx context.Context, launchID string) (*big.Int, error) {
	launch, err := o.launches.GetLaunchByID(launchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get launch: %w", err)
	}
	if launch.Status != models.LaunchStatusDeployed || launch.TokenAddress == nil {
		return nil, newError(KindNotFound, "launch is not deployed", nil)
	}

	amount, err := o.adapter.AvailableVested(ctx, common.HexToAddress(*launch.TokenAddress))
	if err != nil {
		return nil, newError(KindAdapterUnavailable, ErrAdapterUnavailable.Message, err)
	}
	return amount, nil
}

func (o *orchestrator) validate(input interface{}) error {
	err := o.validator.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return newError(KindValidation, ErrValidation.Message, err)
	}
	details := make([]FieldError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return &Error{Kind: KindValidation, Message: ErrValidation.Message, Details: details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "eth_addr":
		return "must be a 0x-prefixed 20-byte hex address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func valueOrZero(addr *common.Address) common.Address {
	if addr == nil {
		return common.Address{}
	}
	return *addr
}
