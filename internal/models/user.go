package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is one authenticated identity. Rows are upserted by external identity id.
type User struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ExternalID  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"external_id"`
	Handle      *string   `gorm:"type:varchar(64);uniqueIndex" json:"handle,omitempty"`
	DisplayName *string   `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	// WalletAddress is overwritten on every claim attempt
	WalletAddress *string   `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
