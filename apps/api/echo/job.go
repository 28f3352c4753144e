package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core/job"
	"github.com/orgalumni/alumni/core/user"
)

type jobApi struct {
	svc job.Service
}

func registerJobAPI(members *echo.Group, api *jobApi) {
	g := members.Group("/jobs")
	g.GET("", api.query)
	g.POST("", api.create)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
	g.PUT("/:id/active", api.setActive)
	g.POST("/:id/apply", api.apply)
	g.GET("/:id/applicants", api.queryApplicants)
	g.GET("/:id/referrals", api.queryReferrals)
	g.POST("/:id/referrals", api.createReferral)
}

// query lists the active jobs. Admins may add ?include_inactive=true
func (api *jobApi) query(ctx echo.Context) error {
	viewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	jobs, err := api.svc.List(ctx.Request().Context(), viewer, queryBool(ctx, "include_inactive"))
	if err != nil {
		return errors.Wrap(err, "listing jobs")
	}
	if jobs == nil {
		jobs = []job.JobView{}
	}
	return ctx.JSON(http.StatusOK, jobs)
}

func (api *jobApi) create(ctx echo.Context) error {
	poster, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data job.NewJob
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewJob")
	}

	j, err := api.svc.Create(ctx.Request().Context(), poster, data)
	if err != nil {
		return errors.Wrap(err, "creating job")
	}
	return ctx.JSON(http.StatusCreated, j)
}

func (api *jobApi) retrieve(ctx echo.Context) error {
	viewer, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	j, err := api.svc.Get(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data job.NewJob
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewJob")
	}

	j, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting job")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *jobApi) setActive(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data SetActiveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}

	j, err := api.svc.SetActive(ctx.Request().Context(), actor, ctx.Param("id"), data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting job activity")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) apply(ctx echo.Context) error {
	applicant, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	j, err := api.svc.Apply(ctx.Request().Context(), applicant, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "applying to job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) queryApplicants(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	users, err := api.svc.ListApplicants(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing applicants")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *jobApi) queryReferrals(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	referrals, err := api.svc.ListReferrals(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing referrals")
	}
	if referrals == nil {
		referrals = []job.ReferralView{}
	}
	return ctx.JSON(http.StatusOK, referrals)
}

func (api *jobApi) createReferral(ctx echo.Context) error {
	referrer, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data job.NewReferral
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReferral")
	}

	r, err := api.svc.AddReferral(ctx.Request().Context(), referrer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding referral")
	}
	return ctx.JSON(http.StatusCreated, r)
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}
