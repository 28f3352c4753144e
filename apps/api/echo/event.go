package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/user"
)

type eventApi struct {
	svc event.Service
}

func registerEventAPI(members *echo.Group, api *eventApi) {
	g := members.Group("/events")
	g.GET("", api.query)
	g.POST("", api.create)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
	g.POST("/:id/attend", api.toggleAttendance)
	g.GET("/:id/attendees", api.queryAttendees)
}

// query lists every event, or only the upcoming ones with ?upcoming=true
func (api *eventApi) query(ctx echo.Context) error {
	viewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var events []event.EventView
	if queryBool(ctx, "upcoming") {
		events, err = api.svc.ListUpcoming(ctx.Request().Context(), viewer)
	} else {
		events, err = api.svc.List(ctx.Request().Context(), viewer)
	}
	if err != nil {
		return errors.Wrap(err, "listing events")
	}
	if events == nil {
		events = []event.EventView{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) create(ctx echo.Context) error {
	creator, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data event.NewEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}

	e, err := api.svc.Create(ctx.Request().Context(), creator, data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	viewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Get(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data event.NewEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}

	e, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *eventApi) toggleAttendance(ctx echo.Context) error {
	viewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	state, err := api.svc.ToggleAttendance(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling attendance")
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *eventApi) queryAttendees(ctx echo.Context) error {
	users, err := api.svc.ListAttendees(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing attendees")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}
