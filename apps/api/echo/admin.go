package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core/admin"
	"github.com/orgalumni/alumni/core/user"
)

type adminApi struct {
	svc      admin.Service
	validate *validator.Validate
}

func registerAdminAPI(members *echo.Group, api *adminApi) {
	g := members.Group("/admin", adminMiddleware)
	g.GET("/stats", api.stats)
	g.GET("/users", api.queryUsers)
	g.GET("/users/pending", api.queryPending)
	g.POST("/users/:id/verify", api.verify)
	g.POST("/users/:id/block", api.block)
	g.POST("/users/:id/unblock", api.unblock)
	g.DELETE("/users/:id", api.destroyUser)
}

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "gathering stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// queryUsers filters with ?search=&status=pending|active|blocked and orders with ?ordering=
func (api *adminApi) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	if err := api.validate.Struct(filter); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.ListUsers(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) queryPending(ctx echo.Context) error {
	users, err := api.svc.ListPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) verify(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.Verify(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "verifying user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) setBlocked(ctx echo.Context, blocked bool) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.SetBlocked(ctx.Request().Context(), actor, ctx.Param("id"), blocked)
	if err != nil {
		return errors.Wrap(err, "setting user blocked")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) block(ctx echo.Context) error   { return api.setBlocked(ctx, true) }
func (api *adminApi) unblock(ctx echo.Context) error { return api.setBlocked(ctx, false) }

func (api *adminApi) destroyUser(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteUser(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}
