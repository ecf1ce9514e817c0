package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LaunchStatus string

const (
	LaunchStatusPending   LaunchStatus = "pending"
	LaunchStatusDeploying LaunchStatus = "deploying"
	LaunchStatusDeployed  LaunchStatus = "deployed"
	LaunchStatusFailed    LaunchStatus = "failed"
)

// IsTerminal reports whether no further status transition is allowed.
func (s LaunchStatus) IsTerminal() bool {
	return s == LaunchStatusDeployed || s == LaunchStatusFailed
}

// CanTransitionTo reports whether next is the forward successor of s.
func (s LaunchStatus) CanTransitionTo(next LaunchStatus) bool {
	switch s {
	case LaunchStatusPending:
		return next == LaunchStatusDeploying
	case LaunchStatusDeploying:
		return next == LaunchStatusDeployed || next == LaunchStatusFailed
	default:
		return false
	}
}

// Launch is a single token-creation event for a target social profile.
// Target fields are a snapshot taken at creation time; the target does not
// need an account.
type Launch struct {
	ID                string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	LauncherUserID    string  `gorm:"type:varchar(36);index;not null" json:"launcher_user_id"`
	TargetHandle      string  `gorm:"type:varchar(64);index;not null" json:"target_handle"`
	TargetDisplayName *string `json:"target_display_name,omitempty"`
	TargetAvatarURL   *string `json:"target_avatar_url,omitempty"`

	TokenName     string `gorm:"type:varchar(128);not null" json:"token_name"`
	TokenSymbol   string `gorm:"type:varchar(16);not null" json:"token_symbol"`
	TokenImageURL string `gorm:"not null" json:"token_image_url"`

	TokenAddress     *string `gorm:"uniqueIndex" json:"token_address,omitempty"`
	DeployTxHash     *string `json:"deploy_tx_hash,omitempty"`
	PoolID           *string `json:"pool_id,omitempty"`
	FeeRouterAddress *string `json:"fee_router_address,omitempty"`
	// RequestKey is the idempotency key handed to the launch protocol
	RequestKey    string       `gorm:"type:varchar(32);uniqueIndex;not null" json:"request_key"`
	Status        LaunchStatus `gorm:"type:varchar(32);index;not null;default:pending" json:"status"`
	FailureReason *string      `json:"failure_reason,omitempty"`

	Claimed              bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedByUserID      *string    `gorm:"type:varchar(36)" json:"claimed_by_user_id,omitempty"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"`
	ClaimerWalletAddress *string    `json:"claimer_wallet_address,omitempty"`
	ClaimTxHash          *string    `json:"claim_tx_hash,omitempty"`
	VaultClaimTxHash     *string    `json:"vault_claim_tx_hash,omitempty"`
	// RouterRecipientSynced is false while a claimed launch's fee router still
	// points at the zero address.
	RouterRecipientSynced bool `gorm:"not null;default:false" json:"router_recipient_synced"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Launcher User `gorm:"foreignKey:LauncherUserID" json:"-"`
}

func (l *Launch) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.RequestKey == "" {
		l.RequestKey = RequestKeyFor(l.ID)
	}
	return nil
}

// RequestKeyFor derives the protocol idempotency key from a launch id.
func RequestKeyFor(launchID string) string {
	return strings.ReplaceAll(launchID, "-", "")
}
