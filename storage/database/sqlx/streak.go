package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/stackschool/academy/core/streak"
)

type streakRow struct {
	UserID       string    `db:"user_id"`
	Current      int       `db:"current"`
	Longest      int       `db:"longest"`
	LastActiveOn time.Time `db:"last_active_on"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r streakRow) toStreak() streak.Streak {
	return streak.Streak{
		UserID:       r.UserID,
		Current:      r.Current,
		Longest:      r.Longest,
		LastActiveOn: r.LastActiveOn,
		UpdatedAt:    r.UpdatedAt,
	}
}

type streakRepository struct {
	db *sqlx.DB
}

var _ streak.Repository = (*streakRepository)(nil) // interface compliance check

func NewStreakRepository(db *sqlx.DB) *streakRepository {
	return &streakRepository{db: db}
}

func (repo streakRepository) GetStreak(ctx context.Context, userID string) (streak.Streak, error) {
	var row streakRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM streak WHERE user_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return streak.Streak{}, streak.ErrNotFound
		}
		return streak.Streak{}, errors.Wrap(err, "finding streak")
	}
	return row.toStreak(), nil
}

func (repo streakRepository) UpsertStreak(ctx context.Context, s streak.Streak) (streak.Streak, error) {
	row := streakRow{
		UserID:       s.UserID,
		Current:      s.Current,
		Longest:      s.Longest,
		LastActiveOn: s.LastActiveOn.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO streak (user_id, current, longest, last_active_on, updated_at)
		VALUES (:user_id, :current, :longest, :last_active_on, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET current        = EXCLUDED.current,
		    longest        = EXCLUDED.longest,
		    last_active_on = EXCLUDED.last_active_on,
		    updated_at     = EXCLUDED.updated_at`,
		row,
	)
	if err != nil {
		return streak.Streak{}, errors.Wrap(err, "upserting streak")
	}
	return row.toStreak(), nil
}
