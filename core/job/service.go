package job

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("job not found")
	ErrInactive = errors.New("this job is no longer accepting applications")
)

type (
	Repository interface {
		CreateJob(ctx context.Context, j Job, exec ...core.DBExecutor) (Job, error)
		GetJob(ctx context.Context, id string, exec ...core.DBExecutor) (Job, error)
		// QueryJobViews returns jobs newest first, with their counters computed for viewerID. Posters are not joined.
		QueryJobViews(ctx context.Context, viewerID string, filter QueryFilter, exec ...core.DBExecutor) ([]JobView, error)
		UpdateJob(ctx context.Context, j Job, exec ...core.DBExecutor) (Job, error)
		DeleteJob(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountJobs(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) (int, error)

		// AddApplicant is a no-op when userID already applied.
		AddApplicant(ctx context.Context, jobID, userID string, at time.Time, exec ...core.DBExecutor) error
		QueryApplicantIDs(ctx context.Context, jobID string, exec ...core.DBExecutor) ([]string, error)

		CreateReferral(ctx context.Context, r Referral, exec ...core.DBExecutor) (Referral, error)
		QueryReferrals(ctx context.Context, jobID string, exec ...core.DBExecutor) ([]Referral, error)
	}

	Service interface {
		List(ctx context.Context, viewer user.User, includeInactive bool) ([]JobView, error)
		Get(ctx context.Context, viewer user.User, id string) (JobView, error)
		Create(ctx context.Context, poster user.User, nj NewJob) (JobView, error)
		Update(ctx context.Context, actor user.User, id string, uj NewJob) (JobView, error)
		Delete(ctx context.Context, actor user.User, id string) error
		SetActive(ctx context.Context, actor user.User, id string, active bool) (JobView, error)
		Apply(ctx context.Context, applicant user.User, id string) (JobView, error)
		AddReferral(ctx context.Context, referrer user.User, id string, nr NewReferral) (ReferralView, error)
		ListApplicants(ctx context.Context, actor user.User, id string) ([]user.User, error)
		ListReferrals(ctx context.Context, actor user.User, id string) ([]ReferralView, error)
		CountActive(ctx context.Context) (int, error)
	}

	Options struct {
		Repo      Repository
		UserSvc   user.Service
		MailSvc   core.EmailService
		Publisher core.Publisher
		Validate  *validator.Validate
		Conf      *core.Config
	}

	service struct {
		Options
	}
)

var _ Service = (*service)(nil)

func NewService(opts Options) Service {
	if opts.Publisher == nil {
		opts.Publisher = core.NopPublisher
	}
	return &service{Options: opts}
}

func (svc *service) query(ctx context.Context, viewer user.User, filter QueryFilter) ([]JobView, error) {
	views, err := svc.Repo.QueryJobViews(ctx, viewer.ID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying jobs")
	}

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.PostedBy)
	}
	posters, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying posters")
	}
	for i := range views {
		if poster, ok := posters[views[i].PostedBy]; ok {
			views[i].Poster = &poster
		}
	}
	return views, nil
}

// List returns the job board, newest first. Closed jobs are only listed for admins asking for them.
func (svc *service) List(ctx context.Context, viewer user.User, includeInactive bool) ([]JobView, error) {
	return svc.query(ctx, viewer, QueryFilter{IncludeInactive: includeInactive && viewer.IsAdmin})
}

// Get returns a job. A closed job is only visible to its poster and admins.
func (svc *service) Get(ctx context.Context, viewer user.User, id string) (JobView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return JobView{}, ErrNotFound
	}
	views, err := svc.query(ctx, viewer, QueryFilter{ID: id, IncludeInactive: true})
	if err != nil {
		return JobView{}, err
	}
	if len(views) == 0 || !(views[0].IsActive || viewer.CanEdit(views[0].PostedBy)) {
		return JobView{}, ErrNotFound
	}
	return views[0], nil
}

// Create opens a job posting. Only admins may post jobs.
func (svc *service) Create(ctx context.Context, poster user.User, nj NewJob) (JobView, error) {
	if !poster.IsAdmin {
		return JobView{}, core.ErrForbidden
	}
	if err := nj.Validate(svc.Validate); err != nil {
		return JobView{}, err
	}

	now := time.Now().UTC()
	j, err := svc.Repo.CreateJob(ctx, Job{
		ID:             uuid.NewString(),
		Title:          nj.Title,
		Company:        nj.Company,
		Location:       nj.Location,
		Description:    nj.Description,
		Requirements:   nj.Requirements,
		Salary:         nj.Salary,
		ApplicationURL: nj.ApplicationURL,
		ContactEmail:   nj.ContactEmail,
		PostedBy:       poster.ID,
		IsActive:       true,
		PostedAt:       now,
		UpdatedAt:      now,
	})
	if err != nil {
		return JobView{}, errors.Wrap(err, "creating job")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionJobs, core.OpCreate, j.ID))
	return JobView{Job: j, Poster: &poster}, nil
}

func (svc *service) getEditable(ctx context.Context, actor user.User, id string) (Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Job{}, ErrNotFound
	}
	j, err := svc.Repo.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !actor.CanEdit(j.PostedBy) {
		return Job{}, core.ErrForbidden
	}
	return j, nil
}

func (svc *service) save(ctx context.Context, actor user.User, j Job) (JobView, error) {
	j.UpdatedAt = time.Now().UTC()
	if _, err := svc.Repo.UpdateJob(ctx, j); err != nil {
		return JobView{}, errors.Wrap(err, "updating job")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionJobs, core.OpUpdate, j.ID))
	return svc.Get(ctx, actor, j.ID)
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, uj NewJob) (JobView, error) {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return JobView{}, err
	}
	if err = uj.Validate(svc.Validate); err != nil {
		return JobView{}, err
	}

	j.Title = uj.Title
	j.Company = uj.Company
	j.Location = uj.Location
	j.Description = uj.Description
	j.Requirements = uj.Requirements
	j.Salary = uj.Salary
	j.ApplicationURL = uj.ApplicationURL
	j.ContactEmail = uj.ContactEmail
	return svc.save(ctx, actor, j)
}

func (svc *service) SetActive(ctx context.Context, actor user.User, id string, active bool) (JobView, error) {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return JobView{}, err
	}
	j.IsActive = active
	return svc.save(ctx, actor, j)
}

// Delete removes a job with its applications and referrals.
func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.Repo.DeleteJob(ctx, j.ID); err != nil {
		return errors.Wrap(err, "deleting job")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionJobs, core.OpDelete, j.ID))
	return nil
}

// getActive returns an open job. A closed job is reported as such only to those who may edit it.
func (svc *service) getActive(ctx context.Context, viewer user.User, id string) (Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Job{}, ErrNotFound
	}
	j, err := svc.Repo.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !j.IsActive {
		if !viewer.CanEdit(j.PostedBy) {
			return Job{}, ErrNotFound
		}
		return Job{}, core.NewValidationError(ErrInactive)
	}
	return j, nil
}

// Apply records the applicant on an open job. Applying twice is a no-op.
func (svc *service) Apply(ctx context.Context, applicant user.User, id string) (JobView, error) {
	j, err := svc.getActive(ctx, applicant, id)
	if err != nil {
		return JobView{}, err
	}
	if err = svc.Repo.AddApplicant(ctx, j.ID, applicant.ID, time.Now().UTC()); err != nil {
		return JobView{}, errors.Wrap(err, "adding applicant")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionJobs, core.OpUpdate, j.ID))
	return svc.Get(ctx, applicant, j.ID)
}

// AddReferral records a referral on an open job and forwards it to the job contact.
func (svc *service) AddReferral(ctx context.Context, referrer user.User, id string, nr NewReferral) (ReferralView, error) {
	j, err := svc.getActive(ctx, referrer, id)
	if err != nil {
		return ReferralView{}, err
	}
	if err = nr.Validate(svc.Validate); err != nil {
		return ReferralView{}, err
	}

	r, err := svc.Repo.CreateReferral(ctx, Referral{
		ID:            uuid.NewString(),
		JobID:         j.ID,
		UserID:        referrer.ID,
		ReferredName:  nr.ReferredName,
		ReferredEmail: nr.ReferredEmail,
		ReferredPhone: nr.ReferredPhone,
		Notes:         nr.Notes,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return ReferralView{}, errors.Wrap(err, "creating referral")
	}
	svc.sendReferralMail(j, r, referrer)
	svc.Publisher.Publish(core.NewChange(core.CollectionJobs, core.OpUpdate, j.ID))
	return ReferralView{Referral: r, Referrer: &referrer}, nil
}

func (svc *service) ListApplicants(ctx context.Context, actor user.User, id string) ([]user.User, error) {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	ids, err := svc.Repo.QueryApplicantIDs(ctx, j.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying applicants")
	}
	users, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying applicant users")
	}

	applicants := make([]user.User, 0, len(ids))
	for _, uid := range ids {
		if usr, ok := users[uid]; ok {
			applicants = append(applicants, usr)
		}
	}
	return applicants, nil
}

func (svc *service) ListReferrals(ctx context.Context, actor user.User, id string) ([]ReferralView, error) {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	referrals, err := svc.Repo.QueryReferrals(ctx, j.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying referrals")
	}

	ids := make([]string, 0, len(referrals))
	for _, r := range referrals {
		ids = append(ids, r.UserID)
	}
	referrers, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying referrers")
	}

	views := make([]ReferralView, 0, len(referrals))
	for _, r := range referrals {
		view := ReferralView{Referral: r}
		if referrer, ok := referrers[r.UserID]; ok {
			view.Referrer = &referrer
		}
		views = append(views, view)
	}
	return views, nil
}

func (svc *service) CountActive(ctx context.Context) (int, error) {
	return svc.Repo.CountJobs(ctx, true /* activeOnly */)
}

func (svc *service) sendReferralMail(j Job, r Referral, referrer user.User) {
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: j.ContactEmail}},
		Subject:      fmt.Sprintf("New referral for %s at %s", j.Title, j.Company),
		TemplateName: core.TmplJobReferral,
		TemplateData: map[string]string{
			"ReferrerName":  referrer.Name,
			"JobTitle":      j.Title,
			"Company":       j.Company,
			"ReferredName":  r.ReferredName,
			"ReferredEmail": r.ReferredEmail,
			"ReferredPhone": r.ReferredPhone,
			"Notes":         r.Notes,
			"URL":           fmt.Sprintf("%s/jobs/%s", svc.Conf.FrontendBaseURL, j.ID),
		},
	})
}
