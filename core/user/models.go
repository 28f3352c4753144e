package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/orgalumni/alumni/core"
)

// Statuses
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

type User struct {
	ID                  string    `json:"id"`
	Name                string    `json:"display_name"`
	Email               string    `json:"email"`
	EmployeeID          string    `json:"employee_id,omitempty"`
	PhotoURL            string    `json:"photo_url,omitempty"`
	PhoneNumber         string    `json:"phone_number,omitempty"`
	LinkedinURL         string    `json:"linkedin_url,omitempty"`
	TwitterURL          string    `json:"twitter_url,omitempty"`
	Bio                 string    `json:"bio,omitempty"`
	Skills              []string  `json:"skills"`
	CurrentCompany      string    `json:"current_company,omitempty"`
	CurrentPosition     string    `json:"current_position,omitempty"`
	YearsAtOrganization int       `json:"years_at_organization,omitempty"`
	GraduationYear      int       `json:"graduation_year,omitempty"`
	IsVerified          bool      `json:"is_verified"`
	IsAdmin             bool      `json:"is_admin"`
	IsBlocked           bool      `json:"is_blocked"`
	PasswordHash        []byte    `json:"-"`
	CreatedAt           time.Time `json:"created_at"` // UTC
	UpdatedAt           time.Time `json:"updated_at"` // UTC
	LastLogin           time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// IsMember reports whether the user belongs to the directory: verified and not blocked.
func (u User) IsMember() bool {
	return u.IsVerified && !u.IsBlocked
}

func (u User) Status() string {
	switch {
	case u.IsBlocked:
		return StatusBlocked
	case u.IsVerified:
		return StatusActive
	default:
		return StatusPending
	}
}

// CanEdit reports whether u may modify a resource owned by ownerID.
func (u User) CanEdit(ownerID string) bool {
	return u.IsAdmin || (u.ID != "" && u.ID == ownerID)
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string `json:"display_name" validate:"omitempty,max=100"`
	Email           string `json:"email" validate:"required,email"`
	EmployeeID      string `json:"employee_id" validate:"omitempty,max=50,identifier"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.EmployeeID = core.CleanString(nu.EmployeeID)
	if nu.Name == "" && nu.Email != "" {
		nu.Name = strings.SplitN(nu.Email, "@", 2)[0]
	}
	return validate.Struct(nu)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// QueryFilter applies an AND on its set fields.
// Search does a case-insensitive match on one of Name, Email or EmployeeID.
type QueryFilter struct {
	Search      string    `query:"search"`
	Status      string    `query:"status" validate:"omitempty,oneof=pending active blocked"`
	IsVerified  *bool     `query:"is_verified"`
	IsBlocked   *bool     `query:"is_blocked"`
	IsAdmin     *bool     `query:"is_admin"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.IsVerified == nil && qf.IsBlocked == nil &&
		qf.IsAdmin == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

// Clean trims the search and expands Status into the matching flags.
func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	switch core.CleanString(qf.Status, true /* lower */) {
	case StatusPending:
		qf.IsVerified = core.BoolPtr(false)
	case StatusActive:
		qf.IsVerified = core.BoolPtr(true)
		qf.IsBlocked = core.BoolPtr(false)
	case StatusBlocked:
		qf.IsBlocked = core.BoolPtr(true)
	}
}

// Members returns the filter matching the alumni directory population.
func Members(search string) *QueryFilter {
	return &QueryFilter{
		Search:     core.CleanString(search),
		IsVerified: core.BoolPtr(true),
		IsBlocked:  core.BoolPtr(false),
	}
}

// GetFilter looks up a single user by one of its fields, in order of precedence.
type GetFilter struct {
	ID    string
	Email string
}
