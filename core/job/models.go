package job

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

type Job struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	Description    string    `json:"description"`
	Requirements   []string  `json:"requirements"`
	Salary         string    `json:"salary,omitempty"`
	ApplicationURL string    `json:"application_url,omitempty"`
	ContactEmail   string    `json:"contact_email"`
	PostedBy       string    `json:"posted_by"`
	IsActive       bool      `json:"is_active"`
	PostedAt       time.Time `json:"posted_at"`  // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// JobView is a Job joined with its poster and the viewer related counters.
type JobView struct {
	Job
	Poster         *user.User `json:"poster"`
	ApplicantCount int        `json:"applicant_count"`
	ReferralCount  int        `json:"referral_count"`
	HasApplied     bool       `json:"has_applied"`
}

type Referral struct {
	ID            string    `json:"id"`
	JobID         string    `json:"job_id"`
	UserID        string    `json:"user_id"`
	ReferredName  string    `json:"referred_name"`
	ReferredEmail string    `json:"referred_email"`
	ReferredPhone string    `json:"referred_phone,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

type ReferralView struct {
	Referral
	Referrer *user.User `json:"referrer"`
}

// NewJob is used to create a Job, and to replace its editable fields.
type NewJob struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Company        string   `json:"company" validate:"required,max=200"`
	Location       string   `json:"location" validate:"required,max=200"`
	Description    string   `json:"description" validate:"required,max=10000"`
	Requirements   []string `json:"requirements" validate:"required,min=1,dive,max=500"`
	Salary         string   `json:"salary" validate:"omitempty,max=100"`
	ApplicationURL string   `json:"application_url" validate:"omitempty,httpurl"`
	ContactEmail   string   `json:"contact_email" validate:"required,email"`
}

func (nj *NewJob) Validate(validate *validator.Validate) error {
	nj.Title = core.CleanString(nj.Title)
	nj.Company = core.CleanString(nj.Company)
	nj.Location = core.CleanString(nj.Location)
	nj.Description = core.CleanString(nj.Description)
	nj.Requirements = core.CleanStrings(nj.Requirements)
	nj.Salary = core.CleanString(nj.Salary)
	nj.ApplicationURL = core.CleanString(nj.ApplicationURL)
	nj.ContactEmail = core.CleanString(nj.ContactEmail, true /* lower */)
	return validate.Struct(nj)
}

type NewReferral struct {
	ReferredName  string `json:"referred_name" validate:"required,max=100"`
	ReferredEmail string `json:"referred_email" validate:"required,email"`
	ReferredPhone string `json:"referred_phone" validate:"omitempty,max=50"`
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
}

func (nr *NewReferral) Validate(validate *validator.Validate) error {
	nr.ReferredName = core.CleanString(nr.ReferredName)
	nr.ReferredEmail = core.CleanString(nr.ReferredEmail, true /* lower */)
	nr.ReferredPhone = core.CleanString(nr.ReferredPhone)
	nr.Notes = core.CleanString(nr.Notes)
	return validate.Struct(nr)
}

// QueryFilter selects jobs. Zero fields are ignored.
type QueryFilter struct {
	ID              string
	IncludeInactive bool
}
