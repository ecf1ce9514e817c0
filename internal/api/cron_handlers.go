package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/profile-launchpad/internal/models"
)

type UnsyncedRoutersResponse struct {
	Launches []models.Launch `json:"launches"`
	Count    int             `json:"count"`
}

// handleCollectFees runs one fee collection pass. Per-launch failures are
// part of the summary, so the response is always 200.
func (s *APIServer) handleCollectFees(c *fiber.Ctx) error {
	summary := s.feeCollectionJob.Run(c.UserContext())
	return c.JSON(summary)
}

// handleUnsyncedRouters lists claimed launches whose fee router still has no recipient
func (s *APIServer) handleUnsyncedRouters(c *fiber.Ctx) error {
	launches, err := s.launchService.ListUnsyncedRouterClaims()
	if err != nil {
		return s.writeError(c, err)
	}
	launches = nonNil(launches)
	return c.JSON(UnsyncedRoutersResponse{Launches: launches, Count: len(launches)})
}
