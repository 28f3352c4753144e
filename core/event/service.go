package event

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("event not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateEvent(ctx context.Context, e Event, exec ...core.DBExecutor) (Event, error)
		GetEvent(ctx context.Context, id string, exec ...core.DBExecutor) (Event, error)
		// QueryEventViews returns the events with their attendance computed for viewerID. Creators are not joined.
		QueryEventViews(ctx context.Context, viewerID string, filter QueryFilter, exec ...core.DBExecutor) ([]EventView, error)
		UpdateEvent(ctx context.Context, e Event, exec ...core.DBExecutor) (Event, error)
		DeleteEvent(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountEvents(ctx context.Context, exec ...core.DBExecutor) (int, error)

		IsAttending(ctx context.Context, eventID, userID string, exec ...core.DBExecutor) (bool, error)
		AddAttendee(ctx context.Context, eventID, userID string, at time.Time, exec ...core.DBExecutor) error
		RemoveAttendee(ctx context.Context, eventID, userID string, exec ...core.DBExecutor) error
		CountAttendees(ctx context.Context, eventID string, exec ...core.DBExecutor) (int, error)
		// QueryAttendeeIDs returns the attendees of an event in the order they joined.
		QueryAttendeeIDs(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]string, error)
	}

	Service interface {
		List(ctx context.Context, viewer user.User) ([]EventView, error)
		ListUpcoming(ctx context.Context, viewer user.User) ([]EventView, error)
		Get(ctx context.Context, viewer user.User, id string) (EventView, error)
		Create(ctx context.Context, creator user.User, ne NewEvent) (EventView, error)
		Update(ctx context.Context, actor user.User, id string, ue NewEvent) (EventView, error)
		Delete(ctx context.Context, actor user.User, id string) error
		ToggleAttendance(ctx context.Context, viewer user.User, id string) (AttendanceState, error)
		ListAttendees(ctx context.Context, id string) ([]user.User, error)
		Count(ctx context.Context) (int, error)
	}

	Options struct {
		Repo      Repository
		DB        core.DB
		UserSvc   user.Service
		Media     core.FileReleaser
		Publisher core.Publisher
		Validate  *validator.Validate
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
	if opts.Media == nil {
		opts.Media = core.NopReleaser
	}
	return &service{Options: opts}
}

func (svc *service) query(ctx context.Context, viewer user.User, filter QueryFilter) ([]EventView, error) {
	views, err := svc.Repo.QueryEventViews(ctx, viewer.ID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.CreatedBy)
	}
	creators, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying creators")
	}
	for i := range views {
		if creator, ok := creators[views[i].CreatedBy]; ok {
			views[i].Creator = &creator
		}
	}
	return views, nil
}

// List returns every event, latest start date first.
func (svc *service) List(ctx context.Context, viewer user.User) ([]EventView, error) {
	return svc.query(ctx, viewer, QueryFilter{})
}

// ListUpcoming returns the events starting after now, soonest first.
func (svc *service) ListUpcoming(ctx context.Context, viewer user.User) ([]EventView, error) {
	return svc.query(ctx, viewer, QueryFilter{StartsAfter: nowFunc().UTC(), Upcoming: true})
}

func (svc *service) Get(ctx context.Context, viewer user.User, id string) (EventView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return EventView{}, ErrNotFound
	}
	views, err := svc.query(ctx, viewer, QueryFilter{ID: id})
	if err != nil {
		return EventView{}, err
	}
	if len(views) == 0 {
		return EventView{}, ErrNotFound
	}
	return views[0], nil
}

// Create adds an event. Its creator is attending it.
func (svc *service) Create(ctx context.Context, creator user.User, ne NewEvent) (EventView, error) {
	if err := ne.Validate(svc.Validate); err != nil {
		return EventView{}, err
	}

	now := nowFunc().UTC()
	e := Event{
		ID:          uuid.NewString(),
		Title:       ne.Title,
		Description: ne.Description,
		Location:    ne.Location,
		StartDate:   ne.StartDate,
		EndDate:     ne.EndDate,
		ImageURL:    ne.ImageURL,
		CreatedBy:   creator.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := core.RunInTx(ctx, svc.DB, func(tx core.DBExecutor) error {
		if _, err := svc.Repo.CreateEvent(ctx, e, tx); err != nil {
			return errors.Wrap(err, "creating event")
		}
		return errors.Wrap(svc.Repo.AddAttendee(ctx, e.ID, creator.ID, now, tx), "adding creator as attendee")
	})
	if err != nil {
		return EventView{}, err
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionEvents, core.OpCreate, e.ID))
	return EventView{Event: e, Creator: &creator, AttendeeCount: 1, IsAttending: true}, nil
}

func (svc *service) getEditable(ctx context.Context, actor user.User, id string) (Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Event{}, ErrNotFound
	}
	e, err := svc.Repo.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !actor.CanEdit(e.CreatedBy) {
		return Event{}, core.ErrForbidden
	}
	return e, nil
}

// Update replaces the editable fields of an event. A replaced or removed image is deleted from the storage.
func (svc *service) Update(ctx context.Context, actor user.User, id string, ue NewEvent) (EventView, error) {
	e, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return EventView{}, err
	}
	if err = ue.Validate(svc.Validate); err != nil {
		return EventView{}, err
	}

	oldImage := e.ImageURL
	e.Title = ue.Title
	e.Description = ue.Description
	e.Location = ue.Location
	e.StartDate = ue.StartDate
	e.EndDate = ue.EndDate
	e.ImageURL = ue.ImageURL
	e.UpdatedAt = nowFunc().UTC()
	if _, err = svc.Repo.UpdateEvent(ctx, e); err != nil {
		return EventView{}, errors.Wrap(err, "updating event")
	}
	if oldImage != e.ImageURL {
		svc.Media.Release(ctx, e.CreatedBy, oldImage)
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionEvents, core.OpUpdate, e.ID))
	return svc.Get(ctx, actor, e.ID)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	e, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.Repo.DeleteEvent(ctx, e.ID); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	svc.Media.Release(ctx, e.CreatedBy, e.ImageURL)
	svc.Publisher.Publish(core.NewChange(core.CollectionEvents, core.OpDelete, e.ID))
	return nil
}

// ToggleAttendance registers the viewer to the event, or unregisters them when already attending.
func (svc *service) ToggleAttendance(ctx context.Context, viewer user.User, id string) (AttendanceState, error) {
	if _, err := uuid.Parse(id); err != nil {
		return AttendanceState{}, ErrNotFound
	}

	var state AttendanceState
	err := core.RunInTx(ctx, svc.DB, func(tx core.DBExecutor) error {
		if _, err := svc.Repo.GetEvent(ctx, id, tx); err != nil {
			return err
		}
		attending, err := svc.Repo.IsAttending(ctx, id, viewer.ID, tx)
		if err != nil {
			return errors.Wrap(err, "checking attendance")
		}
		if attending {
			err = svc.Repo.RemoveAttendee(ctx, id, viewer.ID, tx)
		} else {
			err = svc.Repo.AddAttendee(ctx, id, viewer.ID, nowFunc().UTC(), tx)
		}
		if err != nil {
			return errors.Wrap(err, "toggling attendance")
		}
		state.Attending = !attending
		state.AttendeeCount, err = svc.Repo.CountAttendees(ctx, id, tx)
		return errors.Wrap(err, "counting attendees")
	})
	if err != nil {
		return AttendanceState{}, err
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionEvents, core.OpUpdate, id))
	return state, nil
}

// ListAttendees returns the users attending an event, in the order they joined.
func (svc *service) ListAttendees(ctx context.Context, id string) ([]user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if _, err := svc.Repo.GetEvent(ctx, id); err != nil {
		return nil, err
	}
	ids, err := svc.Repo.QueryAttendeeIDs(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendees")
	}
	users, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendee users")
	}

	attendees := make([]user.User, 0, len(ids))
	for _, uid := range ids {
		if usr, ok := users[uid]; ok {
			attendees = append(attendees, usr)
		}
	}
	return attendees, nil
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.Repo.CountEvents(ctx)
}
