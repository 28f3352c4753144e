// Package admin gathers the moderation operations of the console.
package admin

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/job"
	"github.com/orgalumni/alumni/core/media"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/core/user"
)

var ErrSelfAction = errors.New("you cannot perform this action on your own account")

type Stats struct {
	VerifiedUsers int `json:"verified_users"`
	PendingUsers  int `json:"pending_users"`
	Posts         int `json:"posts"`
	Events        int `json:"events"`
	ActiveJobs    int `json:"active_jobs"`
}

type (
	Service interface {
		Stats(ctx context.Context) (Stats, error)
		ListUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
		ListPending(ctx context.Context) ([]user.User, error)
		Verify(ctx context.Context, actor user.User, id string) (user.User, error)
		SetBlocked(ctx context.Context, actor user.User, id string, blocked bool) (user.User, error)
		DeleteUser(ctx context.Context, actor user.User, id string) error
	}

	Options struct {
		UserSvc  user.Service
		PostSvc  post.Service
		EventSvc event.Service
		JobSvc   job.Service
		MediaSvc media.Service
		Logger   core.Logger
	}

	service struct {
		Options
	}
)

var _ Service = (*service)(nil)

func NewService(opts Options) Service {
	return &service{Options: opts}
}

// Stats counts the console figures concurrently.
func (svc *service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.VerifiedUsers, err = svc.UserSvc.Count(ctx, &user.QueryFilter{IsVerified: core.BoolPtr(true)})
		return errors.Wrap(err, "counting verified users")
	})
	g.Go(func() (err error) {
		stats.PendingUsers, err = svc.UserSvc.Count(ctx, &user.QueryFilter{Status: user.StatusPending})
		return errors.Wrap(err, "counting pending users")
	})
	g.Go(func() (err error) {
		stats.Posts, err = svc.PostSvc.Count(ctx)
		return errors.Wrap(err, "counting posts")
	})
	g.Go(func() (err error) {
		stats.Events, err = svc.EventSvc.Count(ctx)
		return errors.Wrap(err, "counting events")
	})
	g.Go(func() (err error) {
		stats.ActiveJobs, err = svc.JobSvc.CountActive(ctx)
		return errors.Wrap(err, "counting active jobs")
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (svc *service) ListUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	return svc.UserSvc.Query(ctx, filter, ordering)
}

// ListPending returns the accounts waiting for verification, oldest first.
func (svc *service) ListPending(ctx context.Context) ([]user.User, error) {
	return svc.UserSvc.Query(
		ctx,
		&user.QueryFilter{Status: user.StatusPending},
		[]core.DBOrdering{{Field: "created_at", Ascending: true}},
	)
}

func (svc *service) Verify(ctx context.Context, actor user.User, id string) (user.User, error) {
	if !actor.IsAdmin {
		return user.User{}, core.ErrForbidden
	}
	return svc.UserSvc.Verify(ctx, id)
}

func (svc *service) SetBlocked(ctx context.Context, actor user.User, id string, blocked bool) (user.User, error) {
	if !actor.IsAdmin {
		return user.User{}, core.ErrForbidden
	}
	if actor.ID == id {
		return user.User{}, core.NewValidationError(ErrSelfAction)
	}
	return svc.UserSvc.SetBlocked(ctx, id, blocked)
}

// DeleteUser removes an account with everything it created, then releases the files it uploaded.
// Files still used by other accounts are kept.
func (svc *service) DeleteUser(ctx context.Context, actor user.User, id string) error {
	if !actor.IsAdmin {
		return core.ErrForbidden
	}
	if actor.ID == id {
		return core.NewValidationError(ErrSelfAction)
	}
	usr, err := svc.UserSvc.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err = svc.UserSvc.Delete(ctx, usr.ID); err != nil {
		return err
	}
	if err = svc.MediaSvc.ReleaseAll(ctx, usr.ID); err != nil {
		svc.Logger.Warn("releasing deleted user files", err, map[string]interface{}{"user_id": usr.ID})
	}
	return nil
}
