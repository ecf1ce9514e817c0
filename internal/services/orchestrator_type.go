package services

import (
	"strings"

	"github.com/rxtech-lab/profile-launchpad/internal/models"
)

type CreateLaunchInput struct {
	TargetHandle      string  `json:"target_handle" validate:"required,min=1,max=64"`
	TargetDisplayName *string `json:"target_display_name,omitempty" validate:"omitempty,max=256"`
	TargetAvatarURL   *string `json:"target_avatar_url,omitempty" validate:"omitempty,url"`
	TokenName         string  `json:"token_name" validate:"required,min=1,max=128"`
	TokenSymbol       string  `json:"token_symbol" validate:"required,min=1,max=16"`
	TokenImageURL     string  `json:"token_image_url" validate:"required,url"`
}

// Normalize trims every field, strips one leading "@" from the handle and
// upper-cases the symbol.
func (in *CreateLaunchInput) Normalize() {
	in.TargetHandle = strings.TrimPrefix(strings.TrimSpace(in.TargetHandle), "@")
	in.TargetDisplayName = trimOptional(in.TargetDisplayName)
	in.TargetAvatarURL = trimOptional(in.TargetAvatarURL)
	in.TokenName = strings.TrimSpace(in.TokenName)
	in.TokenSymbol = strings.ToUpper(strings.TrimSpace(in.TokenSymbol))
	in.TokenImageURL = strings.TrimSpace(in.TokenImageURL)
}

type ClaimLaunchInput struct {
	LaunchID      string `json:"launch_id" validate:"required,uuid"`
	WalletAddress string `json:"wallet_address" validate:"required,eth_addr"`
}

func (in *ClaimLaunchInput) Normalize() {
	in.LaunchID = strings.TrimSpace(in.LaunchID)
	in.WalletAddress = strings.TrimSpace(in.WalletAddress)
}

// CurrentUser is the requester with the launches that concern them.
type CurrentUser struct {
	User      *models.User    `json:"user"`
	Claimable []models.Launch `json:"claimable"`
	Claimed   []models.Launch `json:"claimed"`
	Launched  []models.Launch `json:"launched"`
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
