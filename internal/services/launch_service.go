package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleStatus is returned when a conditional status update finds the
// launch in a different status than expected.
var ErrStaleStatus = errors.New("launch is not in the expected status")

// DeployedLaunch carries the on-chain identifiers recorded on success.
type DeployedLaunch struct {
	TokenAddress     string
	DeployTxHash     string
	PoolID           *string
	FeeRouterAddress *string
}

// ClaimRequest is the input of the guarded claim update.
type ClaimRequest struct {
	LaunchID      string
	Handle        string
	UserID        string
	WalletAddress string
	ClaimedAt     time.Time
}

// ListLaunchesFilter selects a page of launches, newest first.
type ListLaunchesFilter struct {
	Page   int
	Limit  int
	Status *models.LaunchStatus
}

type LaunchService interface {
	CreateLaunch(launch *models.Launch) error
	GetLaunchByID(id string) (*models.Launch, error)
	GetLaunchByTokenAddress(tokenAddress string) (*models.Launch, error)
	ListLaunches(filter ListLaunchesFilter) ([]models.Launch, int64, error)
	ListLaunchesByLauncher(userID string) ([]models.Launch, error)
	ListClaimableLaunches(handle string) ([]models.Launch, error)
	ListClaimedLaunches(userID string) ([]models.Launch, error)
	ListDeployedWithToken() ([]models.Launch, error)
	ListUnsyncedRouterClaims() ([]models.Launch, error)

	// TransitionStatus moves a launch from one status to its forward successor
	// in a single conditional update.
	TransitionStatus(id string, from, to models.LaunchStatus) error
	MarkDeployed(id string, deployed DeployedLaunch) error
	MarkFailed(id string, reason string) error

	// ClaimLaunch sets the claim fields in one conditional update and returns
	// the claimed row, or ErrClaimRejected when no row matched.
	ClaimLaunch(req ClaimRequest) (*models.Launch, error)
	// ReleaseClaim restores the pre-claim values as long as the claim still belongs to userID.
	ReleaseClaim(id string, userID string) error
	SetClaimTxHashes(id string, claimTxHash, vaultClaimTxHash *string) error
	MarkRouterRecipientSynced(id string) error
}

type launchService struct {
	db *gorm.DB
}

// NewLaunchService creates a new LaunchService
func NewLaunchService(db *gorm.DB) LaunchService {
	return &launchService{db: db}
}

func (s *launchService) CreateLaunch(launch *models.Launch) error {
	if launch.Status == "" {
		launch.Status = models.LaunchStatusPending
	}
	if launch.Status != models.LaunchStatusPending {
		return fmt.Errorf("new launches must be %s, got %s", models.LaunchStatusPending, launch.Status)
	}
	return s.db.Omit(clause.Associations).Create(launch).Error
}

func (s *launchService) GetLaunchByID(id string) (*models.Launch, error) {
	var launch models.Launch
	if err := s.db.Where("id = ?", id).First(&launch).Error; err != nil {
		return nil, err
	}
	return &launch, nil
}

func (s *launchService) GetLaunchByTokenAddress(tokenAddress string) (*models.Launch, error) {
	var launch models.Launch
	if err := s.db.Where("LOWER(token_address) = LOWER(?)", tokenAddress).First(&launch).Error; err != nil {
		return nil, err
	}
	return &launch, nil
}

func (s *launchService) ListLaunches(filter ListLaunchesFilter) ([]models.Launch, int64, error) {
	byStatus := func(db *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			return db.Where("status = ?", *filter.Status)
		}
		return db
	}

	var total int64
	if err := s.db.Model(&models.Launch{}).Scopes(byStatus).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count launches: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	var launches []models.Launch
	err := s.db.Scopes(byStatus).
		Order("created_at DESC").Order("id").
		Offset((page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&launches).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list launches: %w", err)
	}
	return launches, total, nil
}

func (s *launchService) ListLaunchesByLauncher(userID string) ([]models.Launch, error) {
	var launches []models.Launch
	err := s.db.Where("launcher_user_id = ?", userID).Order("created_at DESC").Find(&launches).Error
	return launches, err
}

func (s *launchService) ListClaimableLaunches(handle string) ([]models.Launch, error) {
	var launches []models.Launch
	err := s.db.
		Where("LOWER(target_handle) = LOWER(?) AND claimed = ? AND status = ?", handle, false, models.LaunchStatusDeployed).
		Order("created_at DESC").
		Find(&launches).Error
	return launches, err
}

func (s *launchService) ListClaimedLaunches(userID string) ([]models.Launch, error) {
	var launches []models.Launch
	err := s.db.Where("claimed = ? AND claimed_by_user_id = ?", true, userID).Order("claimed_at DESC").Find(&launches).Error
	return launches, err
}

func (s *launchService) ListDeployedWithToken() ([]models.Launch, error) {
	var launches []models.Launch
	err := s.db.
		Where("status = ? AND token_address IS NOT NULL", models.LaunchStatusDeployed).
		Order("created_at").
		Find(&launches).Error
	return launches, err
}

func (s *launchService) ListUnsyncedRouterClaims() ([]models.Launch, error) {
	var launches []models.Launch
	err := s.db.
		Where("claimed = ? AND router_recipient_synced = ? AND fee_router_address IS NOT NULL AND claimer_wallet_address IS NOT NULL", true, false).
		Order("claimed_at").
		Find(&launches).Error
	return launches, err
}

func (s *launchService) TransitionStatus(id string, from, to models.LaunchStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid launch transition %s -> %s", from, to)
	}
	return s.conditionalUpdate(id, from, map[string]interface{}{"status": to})
}

func (s *launchService) MarkDeployed(id string, deployed DeployedLaunch) error {
	return s.conditionalUpdate(id, models.LaunchStatusDeploying, map[string]interface{}{
		"status":             models.LaunchStatusDeployed,
		"token_address":      deployed.TokenAddress,
		"deploy_tx_hash":     deployed.DeployTxHash,
		"pool_id":            deployed.PoolID,
		"fee_router_address": deployed.FeeRouterAddress,
	})
}

func (s *launchService) MarkFailed(id string, reason string) error {
	return s.conditionalUpdate(id, models.LaunchStatusDeploying, map[string]interface{}{
		"status":         models.LaunchStatusFailed,
		"failure_reason": reason,
	})
}

func (s *launchService) conditionalUpdate(id string, expected models.LaunchStatus, updates map[string]interface{}) error {
	result := s.db.Model(&models.Launch{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update launch %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: launch %s is not %s", ErrStaleStatus, id, expected)
	}
	return nil
}

func (s *launchService) ClaimLaunch(req ClaimRequest) (*models.Launch, error) {
	result := s.db.Model(&models.Launch{}).
		Where("id = ? AND LOWER(target_handle) = LOWER(?) AND claimed = ? AND status = ?",
			req.LaunchID, req.Handle, false, models.LaunchStatusDeployed).
		Updates(map[string]interface{}{
			"claimed":                 true,
			"claimed_by_user_id":      req.UserID,
			"claimed_at":              req.ClaimedAt,
			"claimer_wallet_address":  req.WalletAddress,
			"router_recipient_synced": false,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim launch: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrClaimRejected
	}
	return s.GetLaunchByID(req.LaunchID)
}

func (s *launchService) ReleaseClaim(id string, userID string) error {
	result := s.db.Model(&models.Launch{}).
		Where("id = ? AND claimed = ? AND claimed_by_user_id = ?", id, true, userID).
		Updates(map[string]interface{}{
			"claimed":                false,
			"claimed_by_user_id":     nil,
			"claimed_at":             nil,
			"claimer_wallet_address": nil,
			"claim_tx_hash":          nil,
			"vault_claim_tx_hash":    nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release claim on %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("claim on %s is not held by %s", id, userID)
	}
	return nil
}

func (s *launchService) SetClaimTxHashes(id string, claimTxHash, vaultClaimTxHash *string) error {
	return s.db.Model(&models.Launch{}).
		Where("id = ? AND claimed = ?", id, true).
		Updates(map[string]interface{}{
			"claim_tx_hash":       claimTxHash,
			"vault_claim_tx_hash": vaultClaimTxHash,
		}).Error
}

func (s *launchService) MarkRouterRecipientSynced(id string) error {
	return s.db.Model(&models.Launch{}).
		Where("id = ? AND claimed = ?", id, true).
		Update("router_recipient_synced", true).Error
}
