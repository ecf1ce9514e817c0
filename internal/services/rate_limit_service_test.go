package services_test

import (
	"testing"
	"time"

	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RateLimitServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	clock    *testClock
	limiter  services.RateLimitService
	launches services.LaunchService
	user     *models.User
}

func (suite *RateLimitServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.clock = newTestClock()
	suite.limiter = services.NewRateLimitService(suite.db, services.DefaultLaunchWindow, suite.clock.Now)
	suite.launches = services.NewLaunchService(suite.db)

	user, err := services.NewUserService(suite.db).UpsertUser(identity("did:launcher", "launcher"), nil)
	suite.Require().NoError(err)
	suite.user = user
}

func (suite *RateLimitServiceTestSuite) createLaunchAt(userID string, at time.Time, failed bool) {
	launch := &models.Launch{
		LauncherUserID: userID,
		TargetHandle:   "alice",
		TokenName:      "Alice Coin",
		TokenSymbol:    "ALICE",
		TokenImageURL:  "https://example.com/alice.png",
		CreatedAt:      at,
	}
	suite.Require().NoError(suite.launches.CreateLaunch(launch))
	if failed {
		suite.Require().NoError(suite.launches.TransitionStatus(launch.ID, models.LaunchStatusPending, models.LaunchStatusDeploying))
		suite.Require().NoError(suite.launches.MarkFailed(launch.ID, "reverted"))
	}
}

func (suite *RateLimitServiceTestSuite) TestAllowsFirstLaunch() {
	allowed, err := suite.limiter.Allow(suite.user.ID)
	suite.Require().NoError(err)
	suite.True(allowed)

	wait, err := suite.limiter.RetryAfter(suite.user.ID)
	suite.Require().NoError(err)
	suite.Zero(wait)
}

func (suite *RateLimitServiceTestSuite) TestDeniesUntilWindowPasses() {
	suite.createLaunchAt(suite.user.ID, suite.clock.Now(), false)

	suite.clock.Advance(time.Second)
	allowed, err := suite.limiter.Allow(suite.user.ID)
	suite.Require().NoError(err)
	suite.False(allowed)

	suite.clock.Advance(24*time.Hour - 2*time.Second)
	allowed, err = suite.limiter.Allow(suite.user.ID)
	suite.Require().NoError(err)
	suite.False(allowed, "still inside the window one second before T+24h")

	wait, err := suite.limiter.RetryAfter(suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(time.Second, wait)

	suite.clock.Advance(2 * time.Second)
	allowed, err = suite.limiter.Allow(suite.user.ID)
	suite.Require().NoError(err)
	suite.True(allowed)
}

func (suite *RateLimitServiceTestSuite) TestFailedLaunchesAreExcluded() {
	suite.createLaunchAt(suite.user.ID, suite.clock.Now(), true)

	suite.clock.Advance(time.Second)
	allowed, err := suite.limiter.Allow(suite.user.ID)
	suite.Require().NoError(err)
	suite.True(allowed)
}

func (suite *RateLimitServiceTestSuite) TestLimitIsPerUser() {
	other, err := services.NewUserService(suite.db).UpsertUser(identity("did:other", "other"), nil)
	suite.Require().NoError(err)
	suite.createLaunchAt(other.ID, suite.clock.Now(), false)

	allowed, err := suite.limiter.Allow(suite.user.ID)
	suite.Require().NoError(err)
	suite.True(allowed)
}

func TestRateLimitServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RateLimitServiceTestSuite))
}
