package progress

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/tasks"
	"github.com/stackschool/academy/core/user"
)

const (
	// PassScore is the fixed quiz passing threshold (percent).
	PassScore = 70
	// MaxQuizAttempts caps quiz submissions per (user, lesson).
	MaxQuizAttempts = 2

	msgMaxAttempts   = "Max attempts reached"
	msgQuizSubmitted = "Quiz submitted"
)

var (
	// errors
	ErrNotFound          = errors.New("progress not found")
	ErrSubmissionMissing = errors.New("quiz submission not found")
	ErrNotAuthenticated  = errors.New("user not authenticated")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrProjectReviewed   = errors.New("Project has been reviewed and cannot be updated")
)

type (
	Repository interface {
		GetProgress(ctx context.Context, userID, lessonID string) (LessonProgress, error)
		// UpsertProgress creates or replaces the (user_id, lesson_id) row.
		UpsertProgress(ctx context.Context, rec LessonProgress) (LessonProgress, error)
		// FilterProgress applies AND operation on available QueryFilter fields.
		FilterProgress(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]LessonProgress, error)
		InsertQuizSubmission(ctx context.Context, sub QuizSubmission) (QuizSubmission, error)
		GetQuizSubmissionByID(ctx context.Context, id string) (QuizSubmission, error)
		// QueryQuizSubmissions returns all attempts for (user, lesson), latest first.
		QueryQuizSubmissions(ctx context.Context, userID, lessonID string) ([]QuizSubmission, error)
	}

	// ContentStore is the read-only lesson/question lookup this service needs.
	// course.Repository satisfies it.
	ContentStore interface {
		GetLessonByID(ctx context.Context, id string) (course.Lesson, error)
		QueryCourseLessons(ctx context.Context, courseID string) ([]course.Lesson, error)
		QueryLessonQuestions(ctx context.Context, lessonID string) ([]course.Question, error)
		GetQuestionsByID(ctx context.Context, ids []string) ([]course.Question, error)
	}

	// StreakTracker is notified when a lesson is freshly completed.
	StreakTracker interface {
		Touch(ctx context.Context, userID string, at time.Time) error
	}

	// Notifier delivers a best-effort notification to a user.
	Notifier interface {
		Send(ctx context.Context, userID, kind, title, body, link string) error
	}

	// Grader triggers external, asynchronous grading of a project submission.
	Grader interface {
		Grade(ctx context.Context, userID, lessonID, repoLink string) error
	}

	Service struct {
		repo       Repository
		content    ContentStore
		streak     StreakTracker
		notifier   Notifier
		grader     Grader
		dispatcher tasks.Dispatcher
		logger     core.Logger
		locks      *keyedMutex
	}
)

func NewService(
	repo Repository,
	content ContentStore,
	streak StreakTracker,
	notifier Notifier,
	grader Grader,
	dispatcher tasks.Dispatcher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:       repo,
		content:    content,
		streak:     streak,
		notifier:   notifier,
		grader:     grader,
		dispatcher: dispatcher,
		logger:     logger,
		locks:      newKeyedMutex(),
	}
}

// LessonLocked reports whether the target lesson is locked for usr, given the
// course's lessons in order. Admins are never locked out and the first lesson
// is always open; any other lesson requires the immediately preceding lesson
// to be completed. Unknown lessons and anonymous users fail closed.
func (svc *Service) LessonLocked(ctx context.Context, usr user.User, lessons []course.Lesson, lessonID string) bool {
	if usr.ID == "" {
		return true
	}
	if usr.IsAdmin() {
		return false
	}

	idx := -1
	for i, lsn := range lessons {
		if lsn.ID == lessonID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return true
	}
	if idx == 0 {
		return false
	}

	prev, err := svc.repo.GetProgress(ctx, usr.ID, lessons[idx-1].ID)
	if err != nil {
		return true
	}
	return !prev.IsCompleted
}

// CourseLessons returns the course's ordered lessons decorated with the
// caller's lock and progress state.
func (svc *Service) CourseLessons(ctx context.Context, usr user.User, courseID string) ([]LessonStatus, error) {
	lessons, err := svc.content.QueryCourseLessons(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course lessons")
	}

	var recs []LessonProgress
	if usr.ID != "" {
		recs, err = svc.repo.FilterProgress(ctx, QueryFilter{UserID: usr.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying progress")
		}
	}
	byLesson := make(map[string]LessonProgress, len(recs))
	for _, rec := range recs {
		byLesson[rec.LessonID] = rec
	}

	statuses := make([]LessonStatus, 0, len(lessons))
	prevCompleted := false
	for i, lsn := range lessons {
		rec := byLesson[lsn.ID]
		locked := usr.ID == ""
		if usr.ID != "" && !usr.IsAdmin() {
			locked = i > 0 && !prevCompleted
		}
		if usr.IsAdmin() {
			locked = false
		}
		statuses = append(statuses, LessonStatus{
			Lesson:           lsn,
			Locked:           locked,
			IsCompleted:      rec.IsCompleted,
			QuizAttempts:     rec.QuizAttempts,
			HighestQuizScore: rec.HighestQuizScore,
		})
		prevCompleted = rec.IsCompleted
	}
	return statuses, nil
}

// SubmitQuiz scores one quiz attempt and reconciles the lesson's completion
// state. Answers are index-aligned to the lesson's ordered questions.
func (svc *Service) SubmitQuiz(ctx context.Context, usr user.User, lessonID string, answers []int) (SubmitQuizResult, error) {
	if usr.ID == "" {
		return SubmitQuizResult{}, ErrNotAuthenticated
	}

	unlock := svc.locks.lock(usr.ID + "/" + lessonID)
	defer unlock()

	lsn, err := svc.content.GetLessonByID(ctx, lessonID)
	if err != nil {
		return SubmitQuizResult{}, errors.Wrap(err, "getting lesson")
	}
	questions, err := svc.content.QueryLessonQuestions(ctx, lessonID)
	if err != nil {
		return SubmitQuizResult{}, errors.Wrap(err, "querying questions")
	}

	rec, err := svc.repo.GetProgress(ctx, usr.ID, lessonID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return SubmitQuizResult{}, errors.Wrap(err, "getting progress")
	}
	if rec.UserID == "" {
		rec.UserID = usr.ID
		rec.LessonID = lessonID
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.QuizAttempts >= MaxQuizAttempts {
		return SubmitQuizResult{Success: false, Score: 0, Passed: false, Message: msgMaxAttempts}, nil
	}

	var score int
	passed := true // a lesson without questions is an automatic pass
	correct := make([]int, len(questions))
	qids := make([]string, len(questions))
	if len(questions) > 0 {
		var n int
		for i, q := range questions {
			correct[i] = q.CorrectAnswer
			qids[i] = q.ID
			if i < len(answers) && answers[i] == q.CorrectAnswer {
				n++
			}
		}
		score = int(math.Round(100 * float64(n) / float64(len(questions))))
		passed = score >= PassScore
	}

	// completion needs the quiz passed, now or on any earlier attempt, and,
	// where the lesson has a project, a submitted project link
	quizPassed := passed || rec.HighestQuizScore >= PassScore
	completedNow := quizPassed && (!lsn.HasProject || rec.ProjectRepoLink != nil)
	freshCompletion := completedNow && !rec.IsCompleted

	now := time.Now().UTC()
	attempts := rec.QuizAttempts + 1
	upd := Update{
		QuizAttempts:     &attempts,
		HighestQuizScore: &score,
		IsCompleted:      &completedNow,
	}
	rec, err = svc.repo.UpsertProgress(ctx, upd.Apply(rec, now))
	if err != nil {
		return SubmitQuizResult{}, errors.Wrap(err, "upserting progress")
	}

	// audit log; its failure must not undo the progress write
	sub := QuizSubmission{
		UserID:      usr.ID,
		LessonID:    lessonID,
		Answers:     answers,
		QuestionIDs: qids,
		Score:       score,
		Passed:      passed,
		CreatedAt:   now,
	}
	if _, err = svc.repo.InsertQuizSubmission(ctx, sub); err != nil {
		svc.logger.Error(fmt.Sprintf("recording quiz submission: %v", err), err, usr)
	}

	if freshCompletion {
		svc.dispatchStreakTouch(usr.ID, now)
	}

	return SubmitQuizResult{
		Success:        true,
		Score:          score,
		Passed:         passed,
		IsCompleted:    rec.IsCompleted,
		Message:        msgQuizSubmitted,
		CorrectAnswers: correct,
	}, nil
}

// SubmitProject records a project repo link and reconciles completion.
// A reviewed project is locked; resubmission of an unreviewed one always
// clears any prior review overlay.
func (svc *Service) SubmitProject(ctx context.Context, usr user.User, lessonID, repoLink string) error {
	if usr.ID == "" {
		return ErrNotAuthenticated
	}
	repoLink = core.CleanString(repoLink)
	if repoLink == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "repo_link", Error: "this field is required"})
	}

	unlock := svc.locks.lock(usr.ID + "/" + lessonID)
	defer unlock()

	if _, err := svc.content.GetLessonByID(ctx, lessonID); err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	questions, err := svc.content.QueryLessonQuestions(ctx, lessonID)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}

	rec, err := svc.repo.GetProgress(ctx, usr.ID, lessonID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "getting progress")
	}
	if rec.UserID == "" {
		rec.UserID = usr.ID
		rec.LessonID = lessonID
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.ProjectReviewed {
		return ErrProjectReviewed
	}

	// the project side completes the lesson only if the quiz side (if any)
	// is already passed
	completedNow := len(questions) == 0 || rec.HighestQuizScore >= PassScore
	freshCompletion := completedNow && !rec.IsCompleted

	now := time.Now().UTC()
	upd := Update{
		ProjectRepoLink: &repoLink,
		IsCompleted:     &completedNow,
		ClearReview:     true,
	}
	if _, err = svc.repo.UpsertProgress(ctx, upd.Apply(rec, now)); err != nil {
		return errors.Wrap(err, "upserting progress")
	}

	if freshCompletion {
		svc.dispatchStreakTouch(usr.ID, now)
	}

	userID := usr.ID
	svc.dispatcher.Dispatch(tasks.Task{
		Name: "grader.grade",
		Run: func(ctx context.Context) error {
			return svc.grader.Grade(ctx, userID, lessonID, repoLink)
		},
	})
	return nil
}

// ReviewProject sets the instructor review overlay on a student's progress
// row. It never touches the derived completion state.
func (svc *Service) ReviewProject(ctx context.Context, reviewer user.User, lessonID, studentID string, rating int, feedback string) error {
	if reviewer.ID == "" {
		return ErrNotAuthenticated
	}
	if !reviewer.IsInstructor() {
		return ErrPermissionDenied
	}
	if rating < 0 || rating > 100 {
		return core.NewValidationError(nil, core.FieldError{Field: "rating", Error: "rating must be between 0 and 100"})
	}

	rec, err := svc.repo.GetProgress(ctx, studentID, lessonID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}

	now := time.Now().UTC()
	upd := Update{
		SetReview: &review{
			rating:     rating,
			reviewedBy: reviewer.ID,
			reviewedAt: now,
			feedback:   core.CleanString(feedback),
		},
	}
	if _, err = svc.repo.UpsertProgress(ctx, upd.Apply(rec, now)); err != nil {
		return errors.Wrap(err, "upserting progress")
	}

	svc.dispatcher.Dispatch(tasks.Task{
		Name: "notification.project-reviewed",
		Run: func(ctx context.Context) error {
			return svc.notifier.Send(ctx, studentID, "project_reviewed",
				"Your project has been reviewed",
				fmt.Sprintf("An instructor rated your project %d/100.", rating),
				"/lessons/"+lessonID)
		},
	})
	return nil
}

// QuizReview assembles a past submission with its questions for review
// rendering. Callers who are neither the owner nor staff get nil back, the
// same as a missing submission.
func (svc *Service) QuizReview(ctx context.Context, usr user.User, submissionID string) (*QuizReview, error) {
	if usr.ID == "" {
		return nil, nil
	}

	sub, err := svc.repo.GetQuizSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Cause(err) == ErrSubmissionMissing {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting quiz submission")
	}
	if sub.UserID != usr.ID && !usr.IsAdmin() && !usr.IsInstructor() {
		return nil, nil
	}

	questions, err := svc.submissionQuestions(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &QuizReview{
		Questions:   questions,
		UserAnswers: sub.Answers,
		Score:       sub.Score,
		Passed:      sub.Passed,
	}, nil
}

// submissionQuestions resolves the question set for a submission, preferring
// the order snapshot captured at submission time over the lesson's current
// question order.
func (svc *Service) submissionQuestions(ctx context.Context, sub QuizSubmission) ([]course.Question, error) {
	if len(sub.QuestionIDs) == 0 {
		questions, err := svc.content.QueryLessonQuestions(ctx, sub.LessonID)
		return questions, errors.Wrap(err, "querying questions")
	}

	questions, err := svc.content.GetQuestionsByID(ctx, sub.QuestionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "getting snapshot questions")
	}
	byID := make(map[string]course.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]course.Question, 0, len(sub.QuestionIDs))
	for _, id := range sub.QuestionIDs {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// Query lists progress records for dashboards. Students only ever see their
// own rows; staff may filter freely.
func (svc *Service) Query(ctx context.Context, usr user.User, filter QueryFilter, ordering ...core.DBOrdering) ([]LessonProgress, error) {
	if usr.ID == "" {
		return nil, ErrNotAuthenticated
	}
	if !usr.IsAdmin() && !usr.IsInstructor() {
		filter.UserID = usr.ID
	}
	return svc.repo.FilterProgress(ctx, filter, ordering...)
}

// Submissions lists a user's quiz attempts for a lesson, latest first.
func (svc *Service) Submissions(ctx context.Context, usr user.User, lessonID string) ([]QuizSubmission, error) {
	if usr.ID == "" {
		return nil, ErrNotAuthenticated
	}
	return svc.repo.QueryQuizSubmissions(ctx, usr.ID, lessonID)
}

func (svc *Service) dispatchStreakTouch(userID string, at time.Time) {
	svc.dispatcher.Dispatch(tasks.Task{
		Name: "streak.touch",
		Run: func(ctx context.Context) error {
			return svc.streak.Touch(ctx, userID, at)
		},
	})
}
