package services

import (
	"fmt"
	"math/big"

	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeeCollectionService interface {
	RecordCollection(launchID, tokenAddress string, amountWei *big.Int, txHash string) (*models.FeeCollection, error)
	ListByLaunch(launchID string) ([]models.FeeCollection, error)
	TotalByLaunch(launchID string) (decimal.Decimal, error)
}

type feeCollectionService struct {
	db *gorm.DB
}

// NewFeeCollectionService creates a new FeeCollectionService
func NewFeeCollectionService(db *gorm.DB) FeeCollectionService {
	return &feeCollectionService{db: db}
}

func (s *feeCollectionService) RecordCollection(launchID, tokenAddress string, amountWei *big.Int, txHash string) (*models.FeeCollection, error) {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return nil, fmt.Errorf("fee collection amount must be positive")
	}
	if txHash == "" {
		return nil, fmt.Errorf("fee collection requires a transaction hash")
	}

	collection := &models.FeeCollection{
		LaunchID:     launchID,
		TokenAddress: tokenAddress,
		AmountWei:    decimal.NewFromBigInt(amountWei, 0),
		TxHash:       txHash,
	}
	if err := s.db.Omit(clause.Associations).Create(collection).Error; err != nil {
		return nil, fmt.Errorf("failed to record fee collection: %w", err)
	}
	return collection, nil
}

func (s *feeCollectionService) ListByLaunch(launchID string) ([]models.FeeCollection, error) {
	var collections []models.FeeCollection
	err := s.db.Where("launch_id = ?", launchID).Order("collected_at DESC").Find(&collections).Error
	return collections, err
}

// TotalByLaunch sums in Go because amounts are stored as text.
func (s *feeCollectionService) TotalByLaunch(launchID string) (decimal.Decimal, error) {
	collections, err := s.ListByLaunch(launchID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range collections {
		total = total.Add(c.AmountWei)
	}
	return total, nil
}
