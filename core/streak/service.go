package streak

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("streak not found")
)

// Streak is a per-user daily activity counter, bumped whenever the user
// freshly completes a lesson.
type Streak struct {
	UserID       string    `json:"user_id"`
	Current      int       `json:"current"`
	Longest      int       `json:"longest"`
	LastActiveOn time.Time `json:"last_active_on"` // date precision, UTC
	UpdatedAt    time.Time `json:"updated_at"`     // UTC
}

type (
	Repository interface {
		GetStreak(ctx context.Context, userID string) (Streak, error)
		UpsertStreak(ctx context.Context, s Streak) (Streak, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context, userID string) (Streak, error) {
	return svc.repo.GetStreak(ctx, userID)
}

// Touch records activity for the given day. Same-day touches are idempotent;
// a touch the day after the last activity extends the streak, anything later
// restarts it at 1.
func (svc *Service) Touch(ctx context.Context, userID string, at time.Time) error {
	day := at.UTC().Truncate(24 * time.Hour)

	s, err := svc.repo.GetStreak(ctx, userID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "getting streak")
		}
		s = Streak{UserID: userID}
	}

	switch {
	case s.LastActiveOn.Equal(day):
		return nil
	case s.LastActiveOn.Equal(day.AddDate(0, 0, -1)):
		s.Current++
	default:
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastActiveOn = day
	s.UpdatedAt = at.UTC()

	_, err = svc.repo.UpsertStreak(ctx, s)
	return errors.Wrap(err, "upserting streak")
}
