package services

import (
	"errors"
	"fmt"

	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"gorm.io/gorm"
)

type UserService interface {
	// UpsertUser creates the user for identity or refreshes its profile snapshot.
	// A non-nil walletAddress is recorded on the row.
	UpsertUser(identity *utils.Identity, walletAddress *string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByExternalID(externalID string) (*models.User, error)
}

type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

func (s *userService) UpsertUser(identity *utils.Identity, walletAddress *string) (*models.User, error) {
	if identity == nil || identity.ExternalID == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.GetUserByExternalID(identity.ExternalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &models.User{
			ExternalID:    identity.ExternalID,
			Handle:        identity.Handle,
			DisplayName:   identity.DisplayName,
			AvatarURL:     identity.AvatarURL,
			WalletAddress: walletAddress,
		}
		if err := s.db.Create(user).Error; err == nil {
			return user, nil
		}
		// a concurrent request may have created the row first
		user, err = s.GetUserByExternalID(identity.ExternalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	updates := map[string]interface{}{
		"handle":       identity.Handle,
		"display_name": identity.DisplayName,
		"avatar_url":   identity.AvatarURL,
	}
	if walletAddress != nil {
		updates["wallet_address"] = *walletAddress
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetUserByID(user.ID)
}

func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userService) GetUserByExternalID(externalID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
