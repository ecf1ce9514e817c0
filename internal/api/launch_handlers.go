package api

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/profile-launchpad/internal/api/middleware"
	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type LaunchResponse struct {
	Launch *models.Launch `json:"launch"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type ListLaunchesResponse struct {
	Tokens     []models.Launch `json:"tokens"`
	Pagination Pagination      `json:"pagination"`
}

type LaunchDetailResponse struct {
	Launch         *models.Launch         `json:"launch"`
	FeeCollections []models.FeeCollection `json:"fee_collections"`
	TotalFeesWei   string                 `json:"total_fees_wei"`
}

type VestingResponse struct {
	LaunchID        string `json:"launch_id"`
	TokenAddress    string `json:"token_address"`
	AvailableAmount string `json:"available_amount"`
}

// DeploymentFailedResponse carries the failed launch next to the error.
type DeploymentFailedResponse struct {
	ErrorResponse
	Launch *models.Launch `json:"launch"`
}

var errInvalidBody = &services.Error{Kind: services.KindValidation, Message: "request body must be a JSON object"}

// handleCreateLaunch creates and deploys a launch. A failed deployment still
// returns the failed launch so the caller sees the recorded outcome.
func (s *APIServer) handleCreateLaunch(c *fiber.Ctx) error {
	var input services.CreateLaunchInput
	if err := c.BodyParser(&input); err != nil {
		return s.writeError(c, errInvalidBody)
	}

	launch, err := s.orchestrator.CreateLaunch(c.UserContext(), middleware.GetIdentity(c), input)
	if err != nil {
		if errors.Is(err, services.ErrDeploymentFailed) && launch != nil {
			s.logger.Warn("launch deployment failed", zap.String("launch_id", launch.ID), zap.Error(err))
			return c.Status(StatusForKind(services.KindDeploymentFailed)).JSON(DeploymentFailedResponse{
				ErrorResponse: newErrorResponse(err),
				Launch:        launch,
			})
		}
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(LaunchResponse{Launch: launch})
}

func (s *APIServer) handleClaimLaunch(c *fiber.Ctx) error {
	var input services.ClaimLaunchInput
	if err := c.BodyParser(&input); err != nil {
		return s.writeError(c, errInvalidBody)
	}

	launch, err := s.orchestrator.ClaimLaunch(c.UserContext(), middleware.GetIdentity(c), input)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(LaunchResponse{Launch: launch})
}

func (s *APIServer) handleListLaunches(c *fiber.Ctx) error {
	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		return s.writeError(c, queryError("page", "must be a positive integer"))
	}
	limit, err := queryInt(c, "limit", defaultPageLimit)
	if err != nil || limit < 1 {
		return s.writeError(c, queryError("limit", "must be a positive integer"))
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := services.ListLaunchesFilter{Page: page, Limit: limit}
	switch status := c.Query("status"); status {
	case "":
	case string(models.LaunchStatusDeployed):
		deployed := models.LaunchStatusDeployed
		filter.Status = &deployed
	default:
		return s.writeError(c, queryError("status", "only \"deployed\" is supported"))
	}

	launches, total, err := s.launchService.ListLaunches(filter)
	if err != nil {
		return s.writeError(c, err)
	}
	if launches == nil {
		launches = []models.Launch{}
	}
	return c.JSON(ListLaunchesResponse{
		Tokens: launches,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

func (s *APIServer) handleGetLaunch(c *fiber.Ctx) error {
	launch, err := s.launchService.GetLaunchByID(c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.writeError(c, services.ErrNotFound)
	}
	if err != nil {
		return s.writeError(c, err)
	}

	collections, err := s.feeCollectionService.ListByLaunch(launch.ID)
	if err != nil {
		return s.writeError(c, err)
	}
	total, err := s.feeCollectionService.TotalByLaunch(launch.ID)
	if err != nil {
		return s.writeError(c, err)
	}
	if collections == nil {
		collections = []models.FeeCollection{}
	}
	return c.JSON(LaunchDetailResponse{
		Launch:         launch,
		FeeCollections: collections,
		TotalFeesWei:   total.String(),
	})
}

func (s *APIServer) handleGetVesting(c *fiber.Ctx) error {
	launchID := c.Params("id")
	amount, err := s.orchestrator.AvailableVested(c.UserContext(), launchID)
	if err != nil {
		return s.writeError(c, err)
	}

	launch, err := s.launchService.GetLaunchByID(launchID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(VestingResponse{
		LaunchID:        launch.ID,
		TokenAddress:    *launch.TokenAddress,
		AvailableAmount: amount.String(),
	})
}

func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func queryError(field, message string) error {
	return &services.Error{
		Kind:    services.KindValidation,
		Message: "invalid query parameters",
		Details: []services.FieldError{{Field: field, Message: message}},
	}
}
