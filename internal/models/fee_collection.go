package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeCollection is an append-only record of one successful on-chain fee collection.
type FeeCollection struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"`
	LaunchID     string `gorm:"type:varchar(36);index;not null" json:"launch_id"`
	TokenAddress string `gorm:"not null" json:"token_address"`
	// AmountWei is kept as text so values beyond 64 bits survive every driver
	AmountWei   decimal.Decimal `gorm:"type:text;not null" json:"amount_wei"`
	TxHash      string          `gorm:"not null" json:"tx_hash"`
	CollectedAt time.Time       `gorm:"autoCreateTime" json:"collected_at"`

	Launch Launch `gorm:"foreignKey:LaunchID" json:"-"`
}

func (f *FeeCollection) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Launch{},
		&FeeCollection{},
	}
}
