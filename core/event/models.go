package event

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartDate   time.Time `json:"start_date"` // UTC
	EndDate     time.Time `json:"end_date"`   // UTC
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// EventView is an Event joined with its creator and the viewer related attendance.
type EventView struct {
	Event
	Creator       *user.User `json:"creator"`
	AttendeeCount int        `json:"attendee_count"`
	IsAttending   bool       `json:"is_attending"`
}

type AttendanceState struct {
	Attending     bool `json:"attending"`
	AttendeeCount int  `json:"attendee_count"`
}

// NewEvent is used to create an Event, and to replace its editable fields.
type NewEvent struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"required,max=5000"`
	Location    string    `json:"location" validate:"required,max=200"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	ImageURL    string    `json:"image_url" validate:"omitempty,httpurl"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.Location = core.CleanString(ne.Location)
	ne.ImageURL = core.CleanString(ne.ImageURL)
	ne.StartDate = ne.StartDate.UTC()
	ne.EndDate = ne.EndDate.UTC()
	return validate.Struct(ne)
}

// QueryFilter selects events. Zero fields are ignored.
type QueryFilter struct {
	ID          string
	StartsAfter time.Time
	// Upcoming orders by soonest start first instead of latest.
	Upcoming bool
}
