package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stackschool/academy/core"
)

type Course struct {
	ID          string    `json:"id"`
	Brand       string    `json:"brand"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Lesson is an ordered unit of course content. HasProject marks lessons that
// additionally require a project submission to be considered complete.
type Lesson struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	OrderIndex int       `json:"order_index"`
	HasProject bool      `json:"has_project"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

type Question struct {
	ID            string    `json:"id"`
	LessonID      string    `json:"lesson_id"`
	Prompt        string    `json:"prompt"`
	Options       []string  `json:"options"`
	CorrectAnswer int       `json:"correct_answer"` // index into Options
	OrderIndex    int       `json:"order_index"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to author a new Course.
type NewCourse struct {
	Brand       string `json:"brand" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Slug        string `json:"slug" validate:"required,alphanum_"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Brand = core.CleanString(nc.Brand, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	return validate.Struct(nc)
}

// NewLesson contains information needed to author a new Lesson.
type NewLesson struct {
	Title      string `json:"title" validate:"required"`
	Content    string `json:"content"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
	HasProject bool   `json:"has_project"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}

// NewQuestion contains information needed to author a new quiz Question.
type NewQuestion struct {
	Prompt        string   `json:"prompt" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer int      `json:"correct_answer" validate:"gte=0"`
	OrderIndex    int      `json:"order_index" validate:"gte=0"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Prompt = core.CleanString(nq.Prompt)
	if err := validate.Struct(nq); err != nil {
		return err
	}
	if nq.CorrectAnswer >= len(nq.Options) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "correct_answer", Error: "correct_answer must index into options",
		})
	}
	return nil
}
