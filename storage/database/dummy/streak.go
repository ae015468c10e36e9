package dummydb

import (
	"context"

	"github.com/stackschool/academy/core/streak"
)

type streakRepository struct {
	db *streakTable
}

var _ streak.Repository = (*streakRepository)(nil) // interface compliance check

func NewStreakRepository(db *DB) streak.Repository {
	return &streakRepository{db: db.streak}
}

func (repo *streakRepository) GetStreak(_ context.Context, userID string) (streak.Streak, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[userID]; ok {
		return *s, nil
	}
	return streak.Streak{}, streak.ErrNotFound
}

func (repo *streakRepository) UpsertStreak(_ context.Context, s streak.Streak) (streak.Streak, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[s.UserID] = &s
	return s, nil
}
