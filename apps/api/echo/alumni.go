package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core/connect"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/core/user"
)

type alumniApi struct {
	svc     connect.Service
	postSvc post.Service
}

func registerAlumniAPI(members *echo.Group, api *alumniApi) {
	g := members.Group("/alumni")
	g.GET("", api.query)
	g.GET("/:id", api.retrieve)
	g.GET("/:id/posts", api.queryPosts)
	g.PUT("/:id/profile", api.updateProfile)
	g.PUT("/:id/contact", api.updateContactInfo)
}

func (api *alumniApi) query(ctx echo.Context) error {
	users, err := api.svc.SearchAlumni(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "searching alumni")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *alumniApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetAlumni(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting alumni")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *alumniApi) queryPosts(ctx echo.Context) error {
	viewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	author, err := api.svc.GetAlumni(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting alumni")
	}
	posts, err := api.postSvc.ListByAuthor(ctx.Request().Context(), viewer, author.ID)
	if err != nil {
		return errors.Wrap(err, "listing posts by author")
	}
	if posts == nil {
		posts = []post.PostView{}
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *alumniApi) updateProfile(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data connect.AlumniProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AlumniProfile")
	}

	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *alumniApi) updateContactInfo(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data connect.ContactInfo
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactInfo")
	}

	usr, err := api.svc.UpdateContactInfo(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating contact info")
	}
	return ctx.JSON(http.StatusOK, usr)
}
