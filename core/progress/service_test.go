package progress_test

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/progress"
	"github.com/stackschool/academy/core/streak"
	"github.com/stackschool/academy/core/tasks"
	"github.com/stackschool/academy/core/user"
	logsvc "github.com/stackschool/academy/services/logger"
	dummydb "github.com/stackschool/academy/storage/database/dummy"
	testutil "github.com/stackschool/academy/tests"
)

type notifierStub struct {
	mu    sync.Mutex
	calls []string // userID
}

func (n *notifierStub) Send(_ context.Context, userID, _, _, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userID)
	return nil
}

type graderStub struct {
	mu    sync.Mutex
	links []string
}

func (g *graderStub) Grade(_ context.Context, _, _, repoLink string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links = append(g.links, repoLink)
	return nil
}

type fixture struct {
	svc        *progress.Service
	repo       progress.Repository
	courseRepo course.Repository
	streakRepo streak.Repository
	notifier   *notifierStub
	grader     *graderStub
}

func setup(t *testing.T) *fixture {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	repo := dummydb.NewProgressRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	streakRepo := dummydb.NewStreakRepository(db)
	notifier := new(notifierStub)
	grader := new(graderStub)

	svc := progress.NewService(
		repo,
		courseRepo,
		streak.NewService(streakRepo),
		notifier,
		grader,
		tasks.Sync{Logger: logger},
		logger,
	)
	return &fixture{
		svc:        svc,
		repo:       repo,
		courseRepo: courseRepo,
		streakRepo: streakRepo,
		notifier:   notifier,
		grader:     grader,
	}
}

func (f *fixture) threeLessonCourse(t *testing.T) (course.Course, []course.Lesson) {
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lessons := []course.Lesson{
		testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false),
		testutil.CreateLesson(t, f.courseRepo, crs.ID, "Types", 1, false),
		testutil.CreateLesson(t, f.courseRepo, crs.ID, "Funcs", 2, false),
	}
	return crs, lessons
}

func student() user.User {
	return user.User{ID: "11111111-1111-1111-1111-111111111111", Username: "stud", Roles: []string{user.RoleStudent}}
}

func instructor() user.User {
	return user.User{ID: "22222222-2222-2222-2222-222222222222", Username: "prof", Roles: []string{user.RoleStudent, user.RoleInstructor}}
}

func admin() user.User {
	return user.User{ID: "33333333-3333-3333-3333-333333333333", Username: "boss", Roles: []string{user.RoleAdmin}}
}

// correct answer is always 0 (testutil.CreateQuestion)
func addQuestions(t *testing.T, f *fixture, lessonID string, n int) {
	for i := 0; i < n; i++ {
		testutil.CreateQuestion(t, f.courseRepo, lessonID, "q", i)
	}
}

func TestService_LessonLocked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, lessons := f.threeLessonCourse(t)
	stud := student()

	tests := []struct {
		name     string
		usr      user.User
		lessonID string
		want     bool
	}{
		{name: "anonymous is locked out", usr: user.User{}, lessonID: lessons[0].ID, want: true},
		{name: "first lesson is always open", usr: stud, lessonID: lessons[0].ID, want: false},
		{name: "second lesson locked until first completed", usr: stud, lessonID: lessons[1].ID, want: true},
		{name: "unknown lesson fails closed", usr: stud, lessonID: "nope", want: true},
		{name: "admin is never locked", usr: admin(), lessonID: lessons[2].ID, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.svc.LessonLocked(ctx, tt.usr, lessons, tt.lessonID); got != tt.want {
				t.Errorf("LessonLocked() = %v, want %v", got, tt.want)
			}
		})
	}

	// completing lesson 1 unlocks lesson 2 but not lesson 3
	if _, err := f.svc.SubmitQuiz(ctx, stud, lessons[0].ID, nil); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	if f.svc.LessonLocked(ctx, stud, lessons, lessons[1].ID) {
		t.Error("lesson 2 still locked after completing lesson 1")
	}
	if !f.svc.LessonLocked(ctx, stud, lessons, lessons[2].ID) {
		t.Error("lesson 3 unlocked while lesson 2 is incomplete")
	}
}

func TestService_CourseLessons(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs, lessons := f.threeLessonCourse(t)
	stud := student()

	if _, err := f.svc.SubmitQuiz(ctx, stud, lessons[0].ID, nil); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}

	statuses, err := f.svc.CourseLessons(ctx, stud, crs.ID)
	if err != nil {
		t.Fatalf("CourseLessons() failed: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("CourseLessons() returned %d statuses, want 3", len(statuses))
	}

	assert.False(t, statuses[0].Locked)
	assert.True(t, statuses[0].IsCompleted)
	assert.False(t, statuses[1].Locked, "lesson after a completed one must be open")
	assert.False(t, statuses[1].IsCompleted)
	assert.True(t, statuses[2].Locked)

	// admins see everything unlocked
	adminStatuses, err := f.svc.CourseLessons(ctx, admin(), crs.ID)
	if err != nil {
		t.Fatalf("CourseLessons() failed: %v", err)
	}
	for _, st := range adminStatuses {
		assert.False(t, st.Locked)
	}
}

func TestService_SubmitQuiz_scoring(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	addQuestions(t, f, lsn.ID, 3)
	stud := student()

	res, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0, 1, 1})
	if err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	assert.True(t, res.Success)
	assert.Equal(t, 33, res.Score) // round(100/3)
	assert.False(t, res.Passed)
	assert.False(t, res.IsCompleted)
	assert.Equal(t, []int{0, 0, 0}, res.CorrectAnswers)

	// passing attempt completes the lesson
	res, err = f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0, 0, 0})
	if err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.True(t, res.IsCompleted)

	rec, err := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Equal(t, 2, rec.QuizAttempts)
	assert.Equal(t, 100, rec.HighestQuizScore)
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set on completion")
	}
}

func TestService_SubmitQuiz_attemptCap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	addQuestions(t, f, lsn.ID, 2)
	stud := student()

	for i := 0; i < progress.MaxQuizAttempts; i++ {
		res, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{1, 1})
		if err != nil {
			t.Fatalf("SubmitQuiz() attempt %d failed: %v", i+1, err)
		}
		assert.True(t, res.Success)
	}

	// the cap is a soft rejection, not an error
	res, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0, 0})
	if err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	assert.False(t, res.Success)
	assert.Equal(t, "Max attempts reached", res.Message)
	assert.Equal(t, 0, res.Score)

	rec, err := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Equal(t, progress.MaxQuizAttempts, rec.QuizAttempts)

	subs, err := f.svc.Submissions(ctx, stud, lsn.ID)
	if err != nil {
		t.Fatalf("Submissions() failed: %v", err)
	}
	assert.Len(t, subs, progress.MaxQuizAttempts, "rejected attempt must not be recorded")
}

func TestService_SubmitQuiz_highestScoreIsMonotonic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	addQuestions(t, f, lsn.ID, 2)
	stud := student()

	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0, 0}); err != nil { // 100
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{1, 1}); err != nil { // 0
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}

	rec, err := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Equal(t, 100, rec.HighestQuizScore, "a worse retake must not lower the highest score")
	assert.True(t, rec.IsCompleted)
}

func TestService_SubmitQuiz_noQuestionsAutoPass(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Reading", 0, false)
	stud := student()

	res, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, nil)
	if err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Score)
	assert.True(t, res.Passed)
	assert.True(t, res.IsCompleted)
}

func TestService_SubmitQuiz_requiresAuth(t *testing.T) {
	f := setup(t)

	_, err := f.svc.SubmitQuiz(context.Background(), user.User{}, "some-lesson", nil)
	assert.Equal(t, progress.ErrNotAuthenticated, err)
}

func TestService_completionSymmetry(t *testing.T) {
	// a lesson with both a quiz and a project completes regardless of the
	// order in which the two are finished
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	quizFirst := testutil.CreateLesson(t, f.courseRepo, crs.ID, "A", 0, true)
	projFirst := testutil.CreateLesson(t, f.courseRepo, crs.ID, "B", 1, true)
	addQuestions(t, f, quizFirst.ID, 1)
	addQuestions(t, f, projFirst.ID, 1)
	usr := admin() // admin so lesson order does not interfere

	// quiz then project
	res, err := f.svc.SubmitQuiz(ctx, usr, quizFirst.ID, []int{0})
	if err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	assert.True(t, res.Passed)
	assert.False(t, res.IsCompleted, "quiz pass alone must not complete a project lesson")

	if err = f.svc.SubmitProject(ctx, usr, quizFirst.ID, "https://github.com/x/y"); err != nil {
		t.Fatalf("SubmitProject() failed: %v", err)
	}
	rec, _ := f.repo.GetProgress(ctx, usr.ID, quizFirst.ID)
	assert.True(t, rec.IsCompleted)

	// project then quiz
	if err = f.svc.SubmitProject(ctx, usr, projFirst.ID, "https://github.com/x/y"); err != nil {
		t.Fatalf("SubmitProject() failed: %v", err)
	}
	rec, _ = f.repo.GetProgress(ctx, usr.ID, projFirst.ID)
	assert.False(t, rec.IsCompleted, "project alone must not complete a quiz lesson")

	res, err = f.svc.SubmitQuiz(ctx, usr, projFirst.ID, []int{0})
	if err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	assert.True(t, res.IsCompleted)
}

func TestService_SubmitProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Build", 0, true)
	stud := student()

	if err := f.svc.SubmitProject(ctx, user.User{}, lsn.ID, "https://github.com/x/y"); err != progress.ErrNotAuthenticated {
		t.Errorf("SubmitProject() anonymous error = %v, want ErrNotAuthenticated", err)
	}
	if err := f.svc.SubmitProject(ctx, stud, lsn.ID, "  "); err == nil {
		t.Error("SubmitProject() accepted a blank repo link")
	}

	if err := f.svc.SubmitProject(ctx, stud, lsn.ID, "https://github.com/x/y"); err != nil {
		t.Fatalf("SubmitProject() failed: %v", err)
	}

	// no quiz on this lesson; the project alone completes it
	rec, err := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.True(t, rec.IsCompleted)
	if assert.NotNil(t, rec.ProjectRepoLink) {
		assert.Equal(t, "https://github.com/x/y", *rec.ProjectRepoLink)
	}

	// grading is triggered on every submission
	assert.Equal(t, []string{"https://github.com/x/y"}, f.grader.links)
}

func TestService_SubmitProject_reviewLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Build", 0, true)
	stud := student()
	prof := instructor()

	if err := f.svc.SubmitProject(ctx, stud, lsn.ID, "https://github.com/x/v1"); err != nil {
		t.Fatalf("SubmitProject() failed: %v", err)
	}
	if err := f.svc.ReviewProject(ctx, prof, lsn.ID, stud.ID, 85, "solid"); err != nil {
		t.Fatalf("ReviewProject() failed: %v", err)
	}

	err := f.svc.SubmitProject(ctx, stud, lsn.ID, "https://github.com/x/v2")
	assert.Equal(t, progress.ErrProjectReviewed, err)

	// the reviewed link must be untouched
	rec, _ := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if assert.NotNil(t, rec.ProjectRepoLink) {
		assert.Equal(t, "https://github.com/x/v1", *rec.ProjectRepoLink)
	}
}

func TestService_SubmitProject_resubmitClearsReviewOverlay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Build", 0, true)
	stud := student()
	prof := instructor()

	if err := f.svc.SubmitProject(ctx, stud, lsn.ID, "https://github.com/x/v1"); err != nil {
		t.Fatalf("SubmitProject() failed: %v", err)
	}
	if err := f.svc.ReviewProject(ctx, prof, lsn.ID, stud.ID, 40, "needs work"); err != nil {
		t.Fatalf("ReviewProject() failed: %v", err)
	}

	// an instructor reopens the submission; only the lock flag is lifted,
	// the rest of the overlay stays on the row until the student resubmits
	rec, err := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	rec.ProjectReviewed = false
	if _, err = f.repo.UpsertProgress(ctx, rec); err != nil {
		t.Fatalf("UpsertProgress() failed: %v", err)
	}

	if err = f.svc.SubmitProject(ctx, stud, lsn.ID, "https://github.com/x/v2"); err != nil {
		t.Fatalf("SubmitProject() after reopen failed: %v", err)
	}

	rec, err = f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if assert.NotNil(t, rec.ProjectRepoLink) {
		assert.Equal(t, "https://github.com/x/v2", *rec.ProjectRepoLink)
	}
	assert.False(t, rec.ProjectReviewed)
	assert.Nil(t, rec.ProjectRating)
	assert.Nil(t, rec.ReviewedBy)
	assert.Nil(t, rec.ReviewedAt)
	assert.Nil(t, rec.ProjectFeedback)
}

func TestService_ReviewProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Build", 0, true)
	stud := student()
	prof := instructor()

	if err := f.svc.SubmitProject(ctx, stud, lsn.ID, "https://github.com/x/y"); err != nil {
		t.Fatalf("SubmitProject() failed: %v", err)
	}

	tests := []struct {
		name     string
		reviewer user.User
		rating   int
		wantErr  error
	}{
		{name: "anonymous", reviewer: user.User{}, rating: 50, wantErr: progress.ErrNotAuthenticated},
		{name: "student cannot review", reviewer: student(), rating: 50, wantErr: progress.ErrPermissionDenied},
		{name: "admin without instructor role cannot review", reviewer: admin(), rating: 50, wantErr: progress.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ReviewProject(ctx, tt.reviewer, lsn.ID, stud.ID, tt.rating, "")
			assert.Equal(t, tt.wantErr, err)
		})
	}

	if err := f.svc.ReviewProject(ctx, prof, lsn.ID, stud.ID, 101, ""); err == nil {
		t.Error("ReviewProject() accepted an out-of-range rating")
	}

	rec, _ := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	completedBefore := rec.IsCompleted

	if err := f.svc.ReviewProject(ctx, prof, lsn.ID, stud.ID, 85, "solid work"); err != nil {
		t.Fatalf("ReviewProject() failed: %v", err)
	}

	rec, _ = f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	assert.True(t, rec.ProjectReviewed)
	if assert.NotNil(t, rec.ProjectRating) {
		assert.Equal(t, 85, *rec.ProjectRating)
	}
	if assert.NotNil(t, rec.ReviewedBy) {
		assert.Equal(t, prof.ID, *rec.ReviewedBy)
	}
	if assert.NotNil(t, rec.ProjectFeedback) {
		assert.Equal(t, "solid work", *rec.ProjectFeedback)
	}
	assert.Equal(t, completedBefore, rec.IsCompleted, "review must never change completion")

	// the student got notified
	assert.Equal(t, []string{stud.ID}, f.notifier.calls)
}

func TestService_QuizReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	q1 := testutil.CreateQuestion(t, f.courseRepo, lsn.ID, "first", 0)
	q2 := testutil.CreateQuestion(t, f.courseRepo, lsn.ID, "second", 1)
	stud := student()

	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0, 1}); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	subs, err := f.svc.Submissions(ctx, stud, lsn.ID)
	if err != nil || len(subs) != 1 {
		t.Fatalf("Submissions() = %v, %v; want 1 submission", subs, err)
	}
	subID := subs[0].ID

	// owner sees the review with questions in submission order
	review, err := f.svc.QuizReview(ctx, stud, subID)
	if err != nil {
		t.Fatalf("QuizReview() failed: %v", err)
	}
	if review == nil {
		t.Fatal("QuizReview() = nil for the owner")
	}
	assert.Equal(t, []int{0, 1}, review.UserAnswers)
	assert.Equal(t, 50, review.Score)
	assert.False(t, review.Passed)
	if assert.Len(t, review.Questions, 2) {
		assert.Equal(t, q1.ID, review.Questions[0].ID)
		assert.Equal(t, q2.ID, review.Questions[1].ID)
	}

	// denial is indistinguishable from absence
	tests := []struct {
		name string
		usr  user.User
		id   string
	}{
		{name: "anonymous", usr: user.User{}, id: subID},
		{name: "another student", usr: user.User{ID: "99999999-9999-9999-9999-999999999999", Roles: []string{user.RoleStudent}}, id: subID},
		{name: "missing submission", usr: stud, id: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review, err := f.svc.QuizReview(ctx, tt.usr, tt.id)
			if err != nil {
				t.Fatalf("QuizReview() failed: %v", err)
			}
			assert.Nil(t, review)
		})
	}

	// staff may review any submission
	review, err = f.svc.QuizReview(ctx, instructor(), subID)
	if err != nil {
		t.Fatalf("QuizReview() failed: %v", err)
	}
	assert.NotNil(t, review)
}

func TestService_Query_studentsSeeOnlyTheirRows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	stud := student()
	other := user.User{ID: "99999999-9999-9999-9999-999999999999", Roles: []string{user.RoleStudent}}

	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, nil); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	if _, err := f.svc.SubmitQuiz(ctx, other, lsn.ID, nil); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}

	// a student asking for someone else's rows gets their own
	recs, err := f.svc.Query(ctx, stud, progress.QueryFilter{UserID: other.ID})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if assert.Len(t, recs, 1) {
		assert.Equal(t, stud.ID, recs[0].UserID)
	}

	// staff filter freely
	recs, err = f.svc.Query(ctx, instructor(), progress.QueryFilter{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	assert.Len(t, recs, 2)
}

func TestService_freshCompletionTouchesStreak(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	addQuestions(t, f, lsn.ID, 1)
	stud := student()

	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0}); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}

	s, err := f.streakRepo.GetStreak(ctx, stud.ID)
	if err != nil {
		t.Fatalf("GetStreak() failed: %v", err)
	}
	assert.Equal(t, 1, s.Current)

	// completing the same lesson again must not touch the streak
	before := s.UpdatedAt
	if _, err = f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0}); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	s, err = f.streakRepo.GetStreak(ctx, stud.ID)
	if err != nil {
		t.Fatalf("GetStreak() failed: %v", err)
	}
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, before, s.UpdatedAt)
}

func TestService_concurrentSubmissionsRespectCap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	addQuestions(t, f, lsn.ID, 1)
	stud := student()

	var wg sync.WaitGroup
	results := make([]progress.SubmitQuizResult, 8)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{1})
			if err != nil {
				t.Errorf("SubmitQuiz() failed: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	var accepted int
	for _, res := range results {
		if res.Success {
			accepted++
		}
	}
	assert.Equal(t, progress.MaxQuizAttempts, accepted)

	rec, err := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	assert.Equal(t, progress.MaxQuizAttempts, rec.QuizAttempts)
}

func TestService_completedAtIsSetOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, f.courseRepo, "go", "Go Basics", "go-basics")
	lsn := testutil.CreateLesson(t, f.courseRepo, crs.ID, "Hello", 0, false)
	addQuestions(t, f, lsn.ID, 1)
	stud := student()

	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0}); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	rec, _ := f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if rec.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	first := *rec.CompletedAt

	time.Sleep(5 * time.Millisecond)
	if _, err := f.svc.SubmitQuiz(ctx, stud, lsn.ID, []int{0}); err != nil {
		t.Fatalf("SubmitQuiz() failed: %v", err)
	}
	rec, _ = f.repo.GetProgress(ctx, stud.ID, lsn.ID)
	if rec.CompletedAt == nil || !rec.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt changed on re-completion: %v != %v", rec.CompletedAt, first)
	}
}
