package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/stackschool/academy/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryAllCourses(_ context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].Brand != courses[j].Brand {
			return courses[i].Brand < courses[j].Brand
		}
		return courses[i].Title < courses[j].Title
	})
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseBySlug(_ context.Context, slug string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Slug == slug {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) CreateLesson(_ context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lsn.ID = uuid.New().String()
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) GetLessonByID(_ context.Context, id string) (course.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) QueryCourseLessons(_ context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var lessons []course.Lesson
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			lessons = append(lessons, *lsn)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].OrderIndex < lessons[j].OrderIndex })
	return lessons, nil
}

func (repo *courseRepository) CreateQuestion(_ context.Context, q course.Question) (course.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	q.ID = uuid.New().String()
	repo.db.questions[q.ID] = &q
	return q, nil
}

func (repo *courseRepository) GetQuestionsByID(_ context.Context, ids []string) ([]course.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	questions := make([]course.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := repo.db.questions[id]; ok {
			questions = append(questions, *q)
		}
	}
	return questions, nil
}

func (repo *courseRepository) QueryLessonQuestions(_ context.Context, lessonID string) ([]course.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var questions []course.Question
	for _, q := range repo.db.questions {
		if q.LessonID == lessonID {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].OrderIndex < questions[j].OrderIndex })
	return questions, nil
}
