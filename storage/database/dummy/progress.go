package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func progressKey(userID, lessonID string) string {
	return userID + ":" + lessonID
}

func (repo *progressRepository) GetProgress(_ context.Context, userID, lessonID string) (progress.LessonProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[progressKey(userID, lessonID)]; ok {
		return *rec, nil
	}
	return progress.LessonProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) UpsertProgress(_ context.Context, rec progress.LessonProgress) (progress.LessonProgress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := progressKey(rec.UserID, rec.LessonID)
	if existing, ok := repo.db.table[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.db.table[key] = &rec
	return rec, nil
}

func (repo *progressRepository) FilterProgress(_ context.Context, filter progress.QueryFilter, ordering ...core.DBOrdering) ([]progress.LessonProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var recs []progress.LessonProgress
	for _, rec := range repo.db.table {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.LessonID != "" && rec.LessonID != filter.LessonID {
			continue
		}
		if filter.IsCompleted != nil && rec.IsCompleted != *filter.IsCompleted {
			continue
		}
		if filter.HasProject != nil && (rec.ProjectRepoLink != nil) != *filter.HasProject {
			continue
		}
		if filter.Reviewed != nil && rec.ProjectReviewed != *filter.Reviewed {
			continue
		}
		recs = append(recs, *rec)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].UpdatedAt.After(recs[j].UpdatedAt) })
	return recs, nil
}

func (repo *progressRepository) InsertQuizSubmission(_ context.Context, sub progress.QuizSubmission) (progress.QuizSubmission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *progressRepository) GetQuizSubmissionByID(_ context.Context, id string) (progress.QuizSubmission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return progress.QuizSubmission{}, progress.ErrSubmissionMissing
}

func (repo *progressRepository) QueryQuizSubmissions(_ context.Context, userID, lessonID string) ([]progress.QuizSubmission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []progress.QuizSubmission
	for _, sub := range repo.db.submissions {
		if sub.UserID == userID && sub.LessonID == lessonID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}
