// Package connect is the alumni directory: verified members and their public profiles.
package connect

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

// AlumniProfile holds the profile fields a member edits. It replaces the previous values.
type AlumniProfile struct {
	Name                string   `json:"display_name" validate:"required,max=100"`
	PhotoURL            string   `json:"photo_url" validate:"omitempty,httpurl"`
	Bio                 string   `json:"bio" validate:"omitempty,max=2000"`
	Skills              []string `json:"skills" validate:"omitempty,max=50,dive,max=100"`
	CurrentCompany      string   `json:"current_company" validate:"omitempty,max=200"`
	CurrentPosition     string   `json:"current_position" validate:"omitempty,max=200"`
	YearsAtOrganization int      `json:"years_at_organization" validate:"omitempty,min=0,max=80"`
	GraduationYear      int      `json:"graduation_year" validate:"omitempty,min=1900,max=2100"`
}

func (p *AlumniProfile) Validate(validate *validator.Validate) error {
	p.Name = core.CleanString(p.Name)
	p.PhotoURL = core.CleanString(p.PhotoURL)
	p.Bio = core.CleanString(p.Bio)
	p.Skills = core.UniqueStrings(core.CleanStrings(p.Skills))
	p.CurrentCompany = core.CleanString(p.CurrentCompany)
	p.CurrentPosition = core.CleanString(p.CurrentPosition)
	return validate.Struct(p)
}

type ContactInfo struct {
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=50"`
	LinkedinURL string `json:"linkedin_url" validate:"omitempty,httpurl"`
	TwitterURL  string `json:"twitter_url" validate:"omitempty,httpurl"`
}

func (ci *ContactInfo) Validate(validate *validator.Validate) error {
	ci.PhoneNumber = core.CleanString(ci.PhoneNumber)
	ci.LinkedinURL = core.CleanString(ci.LinkedinURL)
	ci.TwitterURL = core.CleanString(ci.TwitterURL)
	return validate.Struct(ci)
}

var alumniOrdering = []core.DBOrdering{{Field: "display_name", Ascending: true}}

type (
	Service interface {
		ListAlumni(ctx context.Context) ([]user.User, error)
		SearchAlumni(ctx context.Context, q string) ([]user.User, error)
		GetAlumni(ctx context.Context, id string) (user.User, error)
		UpdateProfile(ctx context.Context, actor user.User, id string, p AlumniProfile) (user.User, error)
		UpdateContactInfo(ctx context.Context, actor user.User, id string, ci ContactInfo) (user.User, error)
	}

	service struct {
		userSvc  user.Service
		media    core.FileReleaser
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(userSvc user.Service, media core.FileReleaser, validate *validator.Validate) Service {
	return &service{
		userSvc:  userSvc,
		media:    media,
		validate: validate,
	}
}

// CanEditProfile reports whether actor may edit the profile of user id.
func CanEditProfile(actor user.User, id string) bool {
	return actor.CanEdit(id)
}

// ListAlumni returns the verified and unblocked members, by name.
func (svc *service) ListAlumni(ctx context.Context) ([]user.User, error) {
	return svc.SearchAlumni(ctx, "")
}

// SearchAlumni matches q against the name, email and employee id of members.
func (svc *service) SearchAlumni(ctx context.Context, q string) ([]user.User, error) {
	users, err := svc.userSvc.Query(ctx, user.Members(q), alumniOrdering)
	if err != nil {
		return nil, errors.Wrap(err, "querying alumni")
	}
	return users, nil
}

func (svc *service) GetAlumni(ctx context.Context, id string) (user.User, error) {
	usr, err := svc.userSvc.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if !usr.IsMember() {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (svc *service) getEditable(ctx context.Context, actor user.User, id string) (user.User, error) {
	if !CanEditProfile(actor, id) {
		return user.User{}, core.ErrForbidden
	}
	return svc.userSvc.GetByID(ctx, id)
}

func (svc *service) UpdateProfile(ctx context.Context, actor user.User, id string, p AlumniProfile) (user.User, error) {
	usr, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return user.User{}, err
	}
	if err = p.Validate(svc.validate); err != nil {
		return user.User{}, err
	}

	oldPhoto := usr.PhotoURL
	usr.Name = p.Name
	usr.PhotoURL = p.PhotoURL
	usr.Bio = p.Bio
	usr.Skills = p.Skills
	usr.CurrentCompany = p.CurrentCompany
	usr.CurrentPosition = p.CurrentPosition
	usr.YearsAtOrganization = p.YearsAtOrganization
	usr.GraduationYear = p.GraduationYear

	if usr, err = svc.userSvc.Update(ctx, usr); err != nil {
		return user.User{}, errors.Wrap(err, "updating profile")
	}
	if oldPhoto != usr.PhotoURL {
		svc.media.Release(ctx, usr.ID, oldPhoto)
	}
	return usr, nil
}

func (svc *service) UpdateContactInfo(ctx context.Context, actor user.User, id string, ci ContactInfo) (user.User, error) {
	usr, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return user.User{}, err
	}
	if err = ci.Validate(svc.validate); err != nil {
		return user.User{}, err
	}

	usr.PhoneNumber = ci.PhoneNumber
	usr.LinkedinURL = ci.LinkedinURL
	usr.TwitterURL = ci.TwitterURL
	usr, err = svc.userSvc.Update(ctx, usr)
	return usr, errors.Wrap(err, "updating contact info")
}
