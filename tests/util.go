package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/user"
)

// NewTestConfig returns a Config usable by tests without any environment.
func NewTestConfig() *core.Config {
	return &core.Config{
		Debug:            false, // keep the error handler's response shape
		TestMode:         true,
		Env:              "test",
		AppName:          "Academy",
		SecretKey:        []byte("secret"),
		DefaultFromEmail: mail.Address{Name: "Academy", Address: "noreply@localhost"},

		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{
			Host:                      "localhost",
			Addr:                      ":8000",
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, brand, title, slug string) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Brand:     brand,
		Title:     title,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateLesson(t *testing.T, repo course.Repository, courseID, title string, orderIndex int, hasProject bool) course.Lesson {
	t.Helper()

	now := time.Now().UTC()
	lsn, err := repo.CreateLesson(context.Background(), course.Lesson{
		CourseID:   courseID,
		Title:      title,
		OrderIndex: orderIndex,
		HasProject: hasProject,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return lsn
}

// CreateQuestion adds a question whose correct answer is always option 0.
func CreateQuestion(t *testing.T, repo course.Repository, lessonID, prompt string, orderIndex int) course.Question {
	t.Helper()

	q, err := repo.CreateQuestion(context.Background(), course.Question{
		LessonID:      lessonID,
		Prompt:        prompt,
		Options:       []string{"right", "wrong", "also wrong"},
		CorrectAnswer: 0,
		OrderIndex:    orderIndex,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}
