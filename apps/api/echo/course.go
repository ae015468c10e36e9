package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/progress"
	"github.com/stackschool/academy/core/user"
)

type courseApi struct {
	svc         *course.Service
	progressSvc *progress.Service
	usrSvc      user.ServiceInterface
	validate    *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *course.Service,
	progressSvc *progress.Service,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:         svc,
		progressSvc: progressSvc,
		usrSvc:      usrSvc,
		validate:    validate,
	}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/lessons", api.queryLessons)
	cg.POST("/:id/lessons", api.createLesson, adminMiddleware())

	lg := g.Group("/lessons", jwt)
	lg.GET("/:id", api.retrieveLesson)
	lg.GET("/:id/questions", api.queryQuestions)
	lg.POST("/:id/questions", api.createQuestion, adminMiddleware())
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

// queryLessons returns the course's lessons decorated with the caller's lock
// and completion state.
func (api *courseApi) queryLessons(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if _, err = api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}

	statuses, err := api.progressSvc.CourseLessons(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying course lessons")
	}
	if statuses == nil {
		statuses = []progress.LessonStatus{}
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *courseApi) createLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err := api.svc.CreateLesson(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

// retrieveLesson guards locked lessons per the course progression rules.
func (api *courseApi) retrieveLesson(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lsn, err := api.svc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrLessonNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding lesson by ID")
	}

	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), lsn.CourseID)
	if err != nil {
		return errors.Wrap(err, "querying course lessons")
	}
	if api.progressSvc.LessonLocked(ctx.Request().Context(), ctxUsr, lessons, lsn.ID) {
		return errLessonLocked
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *courseApi) queryQuestions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lsn, err := api.svc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrLessonNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding lesson by ID")
	}

	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), lsn.CourseID)
	if err != nil {
		return errors.Wrap(err, "querying course lessons")
	}
	if api.progressSvc.LessonLocked(ctx.Request().Context(), ctxUsr, lessons, lsn.ID) {
		return errLessonLocked
	}

	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), lsn.ID)
	if err != nil {
		return errors.Wrap(err, "querying lesson questions")
	}

	// students never see the answer key
	if ctxUsr.IsAdmin() || ctxUsr.IsInstructor() {
		return ctx.JSON(http.StatusOK, questions)
	}
	resp := make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		resp = append(resp, QuestionResponse{
			ID:         q.ID,
			LessonID:   q.LessonID,
			Prompt:     q.Prompt,
			Options:    q.Options,
			OrderIndex: q.OrderIndex,
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *courseApi) createQuestion(ctx echo.Context) error {
	var data course.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.CreateQuestion(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrLessonNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

type QuestionResponse struct {
	ID         string   `json:"id"`
	LessonID   string   `json:"lesson_id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	OrderIndex int      `json:"order_index"`
}
