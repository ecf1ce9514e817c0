package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/profile-launchpad/internal/api/middleware"
	"github.com/rxtech-lab/profile-launchpad/internal/models"
)

type CurrentUserResponse struct {
	User            *models.User    `json:"user"`
	ClaimableTokens []models.Launch `json:"claimable_tokens"`
	ClaimedTokens   []models.Launch `json:"claimed_tokens"`
	LaunchedTokens  []models.Launch `json:"launched_tokens"`
}

// handleCurrentUser upserts the requester and lists the launches that concern them
func (s *APIServer) handleCurrentUser(c *fiber.Ctx) error {
	current, err := s.orchestrator.CurrentUser(c.UserContext(), middleware.GetIdentity(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(CurrentUserResponse{
		User:            current.User,
		ClaimableTokens: nonNil(current.Claimable),
		ClaimedTokens:   nonNil(current.Claimed),
		LaunchedTokens:  nonNil(current.Launched),
	})
}

func nonNil(launches []models.Launch) []models.Launch {
	if launches == nil {
		return []models.Launch{}
	}
	return launches
}
