package course

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		GetCourseBySlug(ctx context.Context, slug string) (Course, error)

		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		// QueryCourseLessons returns the course's lessons ordered by OrderIndex.
		QueryCourseLessons(ctx context.Context, courseID string) ([]Lesson, error)

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestionsByID(ctx context.Context, ids []string) ([]Question, error)
		// QueryLessonQuestions returns the lesson's questions ordered by OrderIndex.
		QueryLessonQuestions(ctx context.Context, lessonID string) ([]Question, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Brand:       nc.Brand,
		Title:       nc.Title,
		Slug:        nc.Slug,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Course, error) {
	return svc.repo.GetCourseBySlug(ctx, slug)
}

func (svc *Service) CreateLesson(ctx context.Context, courseID string, nl NewLesson) (Lesson, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Lesson{}, err
	}
	now := time.Now().UTC()
	lsn := Lesson{
		CourseID:   courseID,
		Title:      nl.Title,
		Content:    nl.Content,
		OrderIndex: nl.OrderIndex,
		HasProject: nl.HasProject,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateLesson(ctx, lsn)
}

func (svc *Service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

func (svc *Service) QueryLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	return svc.repo.QueryCourseLessons(ctx, courseID)
}

func (svc *Service) CreateQuestion(ctx context.Context, lessonID string, nq NewQuestion) (Question, error) {
	if _, err := svc.repo.GetLessonByID(ctx, lessonID); err != nil {
		return Question{}, err
	}
	q := Question{
		LessonID:      lessonID,
		Prompt:        nq.Prompt,
		Options:       nq.Options,
		CorrectAnswer: nq.CorrectAnswer,
		OrderIndex:    nq.OrderIndex,
		CreatedAt:     time.Now().UTC(),
	}
	return svc.repo.CreateQuestion(ctx, q)
}

func (svc *Service) QueryQuestions(ctx context.Context, lessonID string) ([]Question, error) {
	return svc.repo.QueryLessonQuestions(ctx, lessonID)
}

func (svc *Service) GetQuestions(ctx context.Context, ids []string) ([]Question, error) {
	return svc.repo.GetQuestionsByID(ctx, ids)
}
