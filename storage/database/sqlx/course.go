package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/stackschool/academy/core/course"
)

type courseRow struct {
	ID          string      `db:"id"`
	Brand       string      `db:"brand"`
	Title       string      `db:"title"`
	Slug        string      `db:"slug"`
	Description null.String `db:"description"`
	IsPublished bool        `db:"is_published"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Brand:       r.Brand,
		Title:       r.Title,
		Slug:        r.Slug,
		Description: r.Description.String,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type lessonRow struct {
	ID         string      `db:"id"`
	CourseID   string      `db:"course_id"`
	Title      string      `db:"title"`
	Content    null.String `db:"content"`
	OrderIndex int         `db:"order_index"`
	HasProject bool        `db:"has_project"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r lessonRow) toLesson() course.Lesson {
	return course.Lesson{
		ID:         r.ID,
		CourseID:   r.CourseID,
		Title:      r.Title,
		Content:    r.Content.String,
		OrderIndex: r.OrderIndex,
		HasProject: r.HasProject,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type questionRow struct {
	ID            string         `db:"id"`
	LessonID      string         `db:"lesson_id"`
	Prompt        string         `db:"prompt"`
	Options       pq.StringArray `db:"options"`
	CorrectAnswer int            `db:"correct_answer"`
	OrderIndex    int            `db:"order_index"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r questionRow) toQuestion() course.Question {
	return course.Question{
		ID:            r.ID,
		LessonID:      r.LessonID,
		Prompt:        r.Prompt,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		OrderIndex:    r.OrderIndex,
		CreatedAt:     r.CreatedAt,
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) trapNoRowsErr(err, domainErr error, msg string) error {
	if err == sql.ErrNoRows {
		return domainErr
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := courseRow{
		ID:          crs.ID,
		Brand:       crs.Brand,
		Title:       crs.Title,
		Slug:        crs.Slug,
		Description: null.NewString(crs.Description, crs.Description != ""),
		IsPublished: crs.IsPublished,
		CreatedAt:   crs.CreatedAt.UTC(),
		UpdatedAt:   crs.UpdatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO course (id, brand, title, slug, description, is_published, created_at, updated_at)
		VALUES (:id, :brand, :title, :slug, :description, :is_published, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.toCourse(), nil
}

func (repo courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM course ORDER BY brand, title`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "finding course by ID")
	}
	return row.toCourse(), nil
}

func (repo courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE slug = $1`, slug); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "finding course by slug")
	}
	return row.toCourse(), nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	lsn.ID = uuid.New().String()
	row := lessonRow{
		ID:         lsn.ID,
		CourseID:   lsn.CourseID,
		Title:      lsn.Title,
		Content:    null.NewString(lsn.Content, lsn.Content != ""),
		OrderIndex: lsn.OrderIndex,
		HasProject: lsn.HasProject,
		CreatedAt:  lsn.CreatedAt.UTC(),
		UpdatedAt:  lsn.UpdatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO lesson (id, course_id, title, content, order_index, has_project, created_at, updated_at)
		VALUES (:id, :course_id, :title, :content, :order_index, :has_project, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return row.toLesson(), nil
}

func (repo courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	var row lessonRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM lesson WHERE id = $1`, id); err != nil {
		return course.Lesson{}, repo.trapNoRowsErr(err, course.ErrLessonNotFound, "finding lesson by ID")
	}
	return row.toLesson(), nil
}

func (repo courseRepository) QueryCourseLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	var rows []lessonRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM lesson WHERE course_id = $1 ORDER BY order_index, created_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.toLesson())
	}
	return lessons, nil
}

func (repo courseRepository) CreateQuestion(ctx context.Context, q course.Question) (course.Question, error) {
	q.ID = uuid.New().String()
	row := questionRow{
		ID:            q.ID,
		LessonID:      q.LessonID,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		OrderIndex:    q.OrderIndex,
		CreatedAt:     q.CreatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO question (id, lesson_id, prompt, options, correct_answer, order_index, created_at)
		VALUES (:id, :lesson_id, :prompt, :options, :correct_answer, :order_index, :created_at)`,
		row,
	)
	if err != nil {
		return course.Question{}, errors.Wrap(err, "inserting question")
	}
	return row.toQuestion(), nil
}

func (repo courseRepository) GetQuestionsByID(ctx context.Context, ids []string) ([]course.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []questionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM question WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying questions by ID")
	}
	questions := make([]course.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.toQuestion())
	}
	return questions, nil
}

func (repo courseRepository) QueryLessonQuestions(ctx context.Context, lessonID string) ([]course.Question, error) {
	var rows []questionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM question WHERE lesson_id = $1 ORDER BY order_index, created_at`, lessonID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lesson questions")
	}
	questions := make([]course.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.toQuestion())
	}
	return questions, nil
}
