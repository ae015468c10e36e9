package progress

import (
	"time"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/course"
)

// LessonProgress is the per-user, per-lesson record tracking completion,
// quiz performance and project submission/review state. IsCompleted is
// derived; it is recomputed at every mutation point and never set by callers.
type LessonProgress struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	LessonID         string     `json:"lesson_id"`
	IsCompleted      bool       `json:"is_completed"`
	QuizAttempts     int        `json:"quiz_attempts"`
	HighestQuizScore int        `json:"highest_quiz_score"`
	ProjectRepoLink  *string    `json:"project_repo_link"`
	CompletedAt      *time.Time `json:"completed_at"`

	// instructor review overlay; cleared whenever the student resubmits
	ProjectReviewed bool       `json:"project_reviewed"`
	ProjectRating   *int       `json:"project_rating"`
	ReviewedBy      *string    `json:"reviewed_by"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	ProjectFeedback *string    `json:"project_feedback"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// QuizSubmission is an immutable record of one quiz attempt. QuestionIDs
// snapshots the lesson's question order at submission time so a later review
// can still align Answers even after the question set is edited.
type QuizSubmission struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	Answers     []int     `json:"answers"`
	QuestionIDs []string  `json:"question_ids"`
	Score       int       `json:"score"`
	Passed      bool      `json:"passed"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type review struct {
	rating     int
	reviewedBy string
	reviewedAt time.Time
	feedback   string
}

// Update is an explicit partial update against a previously-read
// LessonProgress. Unset fields leave the record untouched, which makes the
// "preserve existing completed_at" and "preserve review fields unless
// explicitly reset" rules visible instead of implicit in field omission.
type Update struct {
	QuizAttempts     *int
	HighestQuizScore *int
	IsCompleted      *bool
	ProjectRepoLink  *string
	ClearReview      bool
	SetReview        *review
}

// Apply merges the update into rec. CompletedAt is set once, on the first
// false->true completion transition, and preserved thereafter.
func (u Update) Apply(rec LessonProgress, now time.Time) LessonProgress {
	if u.QuizAttempts != nil {
		rec.QuizAttempts = *u.QuizAttempts
	}
	if u.HighestQuizScore != nil && *u.HighestQuizScore > rec.HighestQuizScore {
		rec.HighestQuizScore = *u.HighestQuizScore
	}
	if u.ProjectRepoLink != nil {
		rec.ProjectRepoLink = u.ProjectRepoLink
	}
	if u.IsCompleted != nil {
		if *u.IsCompleted && rec.CompletedAt == nil {
			t := now
			rec.CompletedAt = &t
		}
		rec.IsCompleted = *u.IsCompleted
	}
	if u.ClearReview {
		rec.ProjectReviewed = false
		rec.ProjectRating = nil
		rec.ReviewedBy = nil
		rec.ReviewedAt = nil
		rec.ProjectFeedback = nil
	}
	if u.SetReview != nil {
		r := *u.SetReview
		rec.ProjectReviewed = true
		rec.ProjectRating = &r.rating
		rec.ReviewedBy = &r.reviewedBy
		rec.ReviewedAt = &r.reviewedAt
		if r.feedback != "" {
			rec.ProjectFeedback = &r.feedback
		} else {
			rec.ProjectFeedback = nil
		}
	}
	rec.UpdatedAt = now
	return rec
}

// SubmitQuizResult is returned to the caller after a quiz submission.
// Success=false with a message is a business-rule refusal, not an error.
// CorrectAnswers is disclosed only after submission so the UI can render a
// review of the attempt.
type SubmitQuizResult struct {
	Success        bool   `json:"success"`
	Score          int    `json:"score"`
	Passed         bool   `json:"passed"`
	IsCompleted    bool   `json:"is_completed"`
	Message        string `json:"message,omitempty"`
	CorrectAnswers []int  `json:"correct_answers,omitempty"`
}

// QuizReview pairs an immutable submission with the lesson's questions for
// client-side comparison rendering.
type QuizReview struct {
	Questions   []course.Question `json:"questions"`
	UserAnswers []int             `json:"user_answers"`
	Score       int               `json:"score"`
	Passed      bool              `json:"passed"`
}

// LessonStatus is a lesson decorated with the caller's lock/progress state.
type LessonStatus struct {
	course.Lesson
	Locked           bool `json:"locked"`
	IsCompleted      bool `json:"is_completed"`
	QuizAttempts     int  `json:"quiz_attempts"`
	HighestQuizScore int  `json:"highest_quiz_score"`
}

// QueryFilter applies an AND operation on its set fields when filtering
// progress records for dashboards.
type QueryFilter struct {
	UserID      string `json:"user_id" query:"user_id"`
	LessonID    string `json:"lesson_id" query:"lesson_id"`
	IsCompleted *bool  `json:"is_completed" query:"is_completed"`
	HasProject  *bool  `json:"has_project" query:"has_project"` // project_repo_link is (not) null
	Reviewed    *bool  `json:"reviewed" query:"reviewed"`
}

func (f *QueryFilter) Clean() {
	f.UserID = core.CleanString(f.UserID)
	f.LessonID = core.CleanString(f.LessonID)
}
