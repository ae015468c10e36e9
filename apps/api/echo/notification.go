package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/stackschool/academy/core/notification"
	"github.com/stackschool/academy/core/user"
)

type notificationApi struct {
	svc    *notification.Service
	usrSvc user.ServiceInterface
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *notification.Service,
	usrSvc user.ServiceInterface,
) {
	api := notificationApi{svc: svc, usrSvc: usrSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	unreadOnly := ctx.QueryParam("unread") == "true"
	notifs, err := api.svc.QueryForUser(ctx.Request().Context(), ctxUsr, unreadOnly)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.MarkRead(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}
