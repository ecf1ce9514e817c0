package services

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"gorm.io/gorm"
)

// DefaultLaunchWindow is the rolling window in which a user may start one launch
const DefaultLaunchWindow = 24 * time.Hour

type RateLimitService interface {
	// Allow reports whether userID may create a launch now. Failed launches
	// do not count against the limit.
	Allow(userID string) (bool, error)
	// RetryAfter returns how long until Allow turns true, zero when it already is.
	RetryAfter(userID string) (time.Duration, error)
}

type rateLimitService struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

// NewRateLimitService derives the limit from the launches table. A nil now uses the wall clock.
func NewRateLimitService(db *gorm.DB, window time.Duration, now func() time.Time) RateLimitService {
	if window <= 0 {
		window = DefaultLaunchWindow
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &rateLimitService{db: db, window: window, now: now}
}

func (s *rateLimitService) Allow(userID string) (bool, error) {
	latest, err := s.latestCounted(userID)
	if err != nil {
		return false, err
	}
	return latest == nil, nil
}

func (s *rateLimitService) RetryAfter(userID string) (time.Duration, error) {
	latest, err := s.latestCounted(userID)
	if err != nil || latest == nil {
		return 0, err
	}
	return latest.CreatedAt.Add(s.window).Sub(s.now()), nil
}

// latestCounted returns the newest non-failed launch inside the window.
func (s *rateLimitService) latestCounted(userID string) (*models.Launch, error) {
	since := s.now().Add(-s.window)

	var launches []models.Launch
	err := s.db.
		Where("launcher_user_id = ? AND created_at > ? AND status <> ?", userID, since, models.LaunchStatusFailed).
		Order("created_at DESC").
		Limit(1).
		Find(&launches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check launch rate limit: %w", err)
	}
	if len(launches) == 0 {
		return nil, nil
	}
	return &launches[0], nil
}
