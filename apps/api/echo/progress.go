package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/progress"
	"github.com/stackschool/academy/core/streak"
	"github.com/stackschool/academy/core/user"
)

type progressApi struct {
	svc       *progress.Service
	streakSvc *streak.Service
	usrSvc    user.ServiceInterface
	validate  *validator.Validate
}

func registerProgressAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *progress.Service,
	streakSvc *streak.Service,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := progressApi{
		svc:       svc,
		streakSvc: streakSvc,
		usrSvc:    usrSvc,
		validate:  validate,
	}

	lg := g.Group("/lessons/:id", jwt)
	lg.POST("/quiz", api.submitQuiz)
	lg.POST("/project", api.submitProject)
	lg.POST("/review", api.reviewProject, instructorMiddleware())
	lg.GET("/submissions", api.querySubmissions)

	g.GET("/quiz-submissions/:id", api.quizReview, jwt)
	g.GET("/progress", api.query, jwt)
	g.GET("/streak", api.retrieveStreak, jwt)
}

// Handlers

func (api *progressApi) submitQuiz(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data SubmitQuizRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitQuizRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.SubmitQuiz(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.Answers)
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrLessonNotFound:
			return errHttpNotFound
		case progress.ErrNotAuthenticated:
			return errUnauthorized
		}
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressApi) submitProject(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data SubmitProjectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitProjectRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err = api.svc.SubmitProject(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.RepoLink)
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrLessonNotFound:
			return errHttpNotFound
		case progress.ErrNotAuthenticated:
			return errUnauthorized
		case progress.ErrProjectReviewed:
			return core.NewValidationError(progress.ErrProjectReviewed)
		}
		return errors.Wrap(err, "submitting project")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Project submitted."})
}

func (api *progressApi) reviewProject(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ReviewProjectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewProjectRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	err = api.svc.ReviewProject(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.StudentID, data.Rating, data.Feedback)
	if err != nil {
		switch errors.Cause(err) {
		case progress.ErrPermissionDenied:
			return errHttpForbidden
		case progress.ErrNotFound, course.ErrLessonNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "reviewing project")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Review recorded."})
}

func (api *progressApi) querySubmissions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.Submissions(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying quiz submissions")
	}
	if subs == nil {
		subs = []progress.QuizSubmission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

// quizReview hides unauthorized submissions behind a 404 instead of
// acknowledging their existence.
func (api *progressApi) quizReview(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	review, err := api.svc.QuizReview(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building quiz review")
	}
	if review == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, review)
}

func (api *progressApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(progress.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []progress.LessonProgress{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	recs, err := api.svc.Query(ctx.Request().Context(), ctxUsr, *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	if recs == nil {
		recs = []progress.LessonProgress{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *progressApi) retrieveStreak(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	s, err := api.streakSvc.Get(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		if errors.Cause(err) == streak.ErrNotFound {
			return ctx.JSON(http.StatusOK, streak.Streak{UserID: ctxUsr.ID})
		}
		return errors.Wrap(err, "getting streak")
	}
	return ctx.JSON(http.StatusOK, s)
}

type (
	SubmitQuizRequest struct {
		Answers []int `json:"answers" validate:"required"`
	}

	SubmitProjectRequest struct {
		RepoLink string `json:"repo_link" validate:"required,url"`
	}

	ReviewProjectRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		Rating    int    `json:"rating" validate:"gte=0,lte=100"`
		Feedback  string `json:"feedback"`
	}
)

func (sp *SubmitProjectRequest) Validate(validate *validator.Validate) error {
	sp.RepoLink = core.CleanString(sp.RepoLink)
	return validate.Struct(sp)
}
