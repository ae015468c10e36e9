package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/progress"
)

type progressRow struct {
	ID               string      `db:"id"`
	UserID           string      `db:"user_id"`
	LessonID         string      `db:"lesson_id"`
	IsCompleted      bool        `db:"is_completed"`
	QuizAttempts     int         `db:"quiz_attempts"`
	HighestQuizScore int         `db:"highest_quiz_score"`
	ProjectRepoLink  null.String `db:"project_repo_link"`
	CompletedAt      null.Time   `db:"completed_at"`
	ProjectReviewed  bool        `db:"project_reviewed"`
	ProjectRating    null.Int    `db:"project_rating"`
	ReviewedBy       null.String `db:"reviewed_by"`
	ReviewedAt       null.Time   `db:"reviewed_at"`
	ProjectFeedback  null.String `db:"project_feedback"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

func (r progressRow) toProgress() progress.LessonProgress {
	return progress.LessonProgress{
		ID:               r.ID,
		UserID:           r.UserID,
		LessonID:         r.LessonID,
		IsCompleted:      r.IsCompleted,
		QuizAttempts:     r.QuizAttempts,
		HighestQuizScore: r.HighestQuizScore,
		ProjectRepoLink:  r.ProjectRepoLink.Ptr(),
		CompletedAt:      r.CompletedAt.Ptr(),
		ProjectReviewed:  r.ProjectReviewed,
		ProjectRating:    r.ProjectRating.Ptr(),
		ReviewedBy:       r.ReviewedBy.Ptr(),
		ReviewedAt:       r.ReviewedAt.Ptr(),
		ProjectFeedback:  r.ProjectFeedback.Ptr(),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newProgressRow(rec progress.LessonProgress) progressRow {
	return progressRow{
		ID:               rec.ID,
		UserID:           rec.UserID,
		LessonID:         rec.LessonID,
		IsCompleted:      rec.IsCompleted,
		QuizAttempts:     rec.QuizAttempts,
		HighestQuizScore: rec.HighestQuizScore,
		ProjectRepoLink:  null.StringFromPtr(rec.ProjectRepoLink),
		CompletedAt:      null.TimeFromPtr(rec.CompletedAt),
		ProjectReviewed:  rec.ProjectReviewed,
		ProjectRating:    null.IntFromPtr(rec.ProjectRating),
		ReviewedBy:       null.StringFromPtr(rec.ReviewedBy),
		ReviewedAt:       null.TimeFromPtr(rec.ReviewedAt),
		ProjectFeedback:  null.StringFromPtr(rec.ProjectFeedback),
		CreatedAt:        rec.CreatedAt.UTC(),
		UpdatedAt:        rec.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	LessonID    string         `db:"lesson_id"`
	Answers     pq.Int64Array  `db:"answers"`
	QuestionIDs pq.StringArray `db:"question_ids"`
	Score       int            `db:"score"`
	Passed      bool           `db:"passed"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r submissionRow) toSubmission() progress.QuizSubmission {
	answers := make([]int, 0, len(r.Answers))
	for _, a := range r.Answers {
		answers = append(answers, int(a))
	}
	return progress.QuizSubmission{
		ID:          r.ID,
		UserID:      r.UserID,
		LessonID:    r.LessonID,
		Answers:     answers,
		QuestionIDs: r.QuestionIDs,
		Score:       r.Score,
		Passed:      r.Passed,
		CreatedAt:   r.CreatedAt,
	}
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo progressRepository) trapNoRowsErr(err, domainErr error, msg string) error {
	if err == sql.ErrNoRows {
		return domainErr
	}
	return errors.Wrap(err, msg)
}

func (repo progressRepository) GetProgress(ctx context.Context, userID, lessonID string) (progress.LessonProgress, error) {
	var row progressRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2`, userID, lessonID)
	if err != nil {
		return progress.LessonProgress{}, repo.trapNoRowsErr(err, progress.ErrNotFound, "finding lesson progress")
	}
	return row.toProgress(), nil
}

func (repo progressRepository) UpsertProgress(ctx context.Context, rec progress.LessonProgress) (progress.LessonProgress, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	row := newProgressRow(rec)
	// the (user_id, lesson_id) unique constraint makes concurrent first
	// writes converge on a single row
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO lesson_progress (id, user_id, lesson_id, is_completed, quiz_attempts, highest_quiz_score,
		                             project_repo_link, completed_at, project_reviewed, project_rating,
		                             reviewed_by, reviewed_at, project_feedback, created_at, updated_at)
		VALUES (:id, :user_id, :lesson_id, :is_completed, :quiz_attempts, :highest_quiz_score,
		        :project_repo_link, :completed_at, :project_reviewed, :project_rating,
		        :reviewed_by, :reviewed_at, :project_feedback, :created_at, :updated_at)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET is_completed       = EXCLUDED.is_completed,
		    quiz_attempts      = EXCLUDED.quiz_attempts,
		    highest_quiz_score = EXCLUDED.highest_quiz_score,
		    project_repo_link  = EXCLUDED.project_repo_link,
		    completed_at       = EXCLUDED.completed_at,
		    project_reviewed   = EXCLUDED.project_reviewed,
		    project_rating     = EXCLUDED.project_rating,
		    reviewed_by        = EXCLUDED.reviewed_by,
		    reviewed_at        = EXCLUDED.reviewed_at,
		    project_feedback   = EXCLUDED.project_feedback,
		    updated_at         = EXCLUDED.updated_at`,
		row,
	)
	if err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "upserting lesson progress")
	}
	return repo.GetProgress(ctx, rec.UserID, rec.LessonID)
}

func (repo progressRepository) FilterProgress(ctx context.Context, filter progress.QueryFilter, ordering ...core.DBOrdering) ([]progress.LessonProgress, error) {
	query := `SELECT * FROM lesson_progress WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.UserID != "" {
		query += " AND user_id = " + arg(filter.UserID)
	}
	if filter.LessonID != "" {
		query += " AND lesson_id = " + arg(filter.LessonID)
	}
	if filter.IsCompleted != nil {
		query += " AND is_completed = " + arg(*filter.IsCompleted)
	}
	if filter.HasProject != nil {
		if *filter.HasProject {
			query += " AND project_repo_link IS NOT NULL"
		} else {
			query += " AND project_repo_link IS NULL"
		}
	}
	if filter.Reviewed != nil {
		query += " AND project_reviewed = " + arg(*filter.Reviewed)
	}
	query += orderingClause(ordering, "updated_at DESC")

	var rows []progressRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering lesson progress")
	}
	recs := make([]progress.LessonProgress, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toProgress())
	}
	return recs, nil
}

func (repo progressRepository) InsertQuizSubmission(ctx context.Context, sub progress.QuizSubmission) (progress.QuizSubmission, error) {
	sub.ID = uuid.New().String()
	answers := make(pq.Int64Array, 0, len(sub.Answers))
	for _, a := range sub.Answers {
		answers = append(answers, int64(a))
	}
	row := submissionRow{
		ID:          sub.ID,
		UserID:      sub.UserID,
		LessonID:    sub.LessonID,
		Answers:     answers,
		QuestionIDs: sub.QuestionIDs,
		Score:       sub.Score,
		Passed:      sub.Passed,
		CreatedAt:   sub.CreatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO quiz_submission (id, user_id, lesson_id, answers, question_ids, score, passed, created_at)
		VALUES (:id, :user_id, :lesson_id, :answers, :question_ids, :score, :passed, :created_at)`,
		row,
	)
	if err != nil {
		return progress.QuizSubmission{}, errors.Wrap(err, "inserting quiz submission")
	}
	return row.toSubmission(), nil
}

func (repo progressRepository) GetQuizSubmissionByID(ctx context.Context, id string) (progress.QuizSubmission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return progress.QuizSubmission{}, progress.ErrSubmissionMissing
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM quiz_submission WHERE id = $1`, id); err != nil {
		return progress.QuizSubmission{}, repo.trapNoRowsErr(err, progress.ErrSubmissionMissing, "finding quiz submission")
	}
	return row.toSubmission(), nil
}

func (repo progressRepository) QueryQuizSubmissions(ctx context.Context, userID, lessonID string) ([]progress.QuizSubmission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM quiz_submission WHERE user_id = $1 AND lesson_id = $2 ORDER BY created_at DESC`,
		userID, lessonID)
	if err != nil {
		return nil, errors.Wrap(err, "querying quiz submissions")
	}
	subs := make([]progress.QuizSubmission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}
