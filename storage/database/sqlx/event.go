package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/event"
)

const eventColumns = "id, title, description, location, start_date, end_date, image_url, created_by, created_at, updated_at"

type eventRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Location    string      `db:"location"`
	StartDate   time.Time   `db:"start_date"`
	EndDate     time.Time   `db:"end_date"`
	ImageURL    null.String `db:"image_url"`
	CreatedBy   string      `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

type eventViewRow struct {
	eventRow
	AttendeeCount int  `db:"attendee_count"`
	IsAttending   bool `db:"is_attending"`
}

type eventRepository struct {
	baseRepository
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(exec core.DBExecutor) event.Repository {
	return &eventRepository{baseRepository{exec: exec}}
}

func (repo eventRepository) toRow(e event.Event) eventRow {
	return eventRow{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartDate:   e.StartDate.UTC(),
		EndDate:     e.EndDate.UTC(),
		ImageURL:    null.NewString(e.ImageURL, e.ImageURL != ""),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (repo eventRepository) fromRow(row eventRow) event.Event {
	return event.Event{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Location:    row.Location,
		StartDate:   row.StartDate.UTC(),
		EndDate:     row.EndDate.UTC(),
		ImageURL:    row.ImageURL.String,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo eventRepository) CreateEvent(ctx context.Context, e event.Event, exec ...core.DBExecutor) (event.Event, error) {
	query := "INSERT INTO events (" + eventColumns + `) VALUES (:id, :title, :description, :location,
		:start_date, :end_date, :image_url, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toRow(e)); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return e, nil
}

func (repo eventRepository) GetEvent(ctx context.Context, id string, exec ...core.DBExecutor) (event.Event, error) {
	db := repo.getExec(exec)
	var row eventRow
	if err := sqlx.GetContext(ctx, db, &row, db.Rebind("SELECT "+eventColumns+" FROM events WHERE id = ?"), id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, errors.Wrap(err, "selecting event")
	}
	return repo.fromRow(row), nil
}

func (repo eventRepository) QueryEventViews(
	ctx context.Context,
	viewerID string,
	filter event.QueryFilter,
	exec ...core.DBExecutor,
) ([]event.EventView, error) {
	db := repo.getExec(exec)

	var conds []string
	args := []interface{}{viewerID}
	if filter.ID != "" {
		conds = append(conds, "e.id = ?")
		args = append(args, filter.ID)
	}
	if !filter.StartsAfter.IsZero() {
		conds = append(conds, "e.start_date > ?")
		args = append(args, filter.StartsAfter.UTC())
	}
	order := " ORDER BY e.start_date DESC, e.id"
	if filter.Upcoming {
		order = " ORDER BY e.start_date ASC, e.id"
	}

	query := `SELECT e.id, e.title, e.description, e.location, e.start_date, e.end_date, e.image_url,
		e.created_by, e.created_at, e.updated_at,
		(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendee_count,
		EXISTS (SELECT 1 FROM event_attendees a WHERE a.event_id = e.id AND a.user_id = ?) AS is_attending
		FROM events e` + whereClause(conds) + order

	var rows []eventViewRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting events")
	}

	views := make([]event.EventView, 0, len(rows))
	for _, row := range rows {
		views = append(views, event.EventView{
			Event:         repo.fromRow(row.eventRow),
			AttendeeCount: row.AttendeeCount,
			IsAttending:   row.IsAttending,
		})
	}
	return views, nil
}

func (repo eventRepository) UpdateEvent(ctx context.Context, e event.Event, exec ...core.DBExecutor) (event.Event, error) {
	query := `UPDATE events SET title = :title, description = :description, location = :location,
		start_date = :start_date, end_date = :end_date, image_url = :image_url, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toRow(e))
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if n, err := rowsAffected(res); err != nil {
		return event.Event{}, err
	} else if n == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return e, nil
}

func (repo eventRepository) DeleteEvent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	_, err := db.ExecContext(ctx, db.Rebind("DELETE FROM events WHERE id = ?"), id)
	return errors.Wrap(err, "deleting event")
}

func (repo eventRepository) CountEvents(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, repo.getExec(exec), &count, "SELECT COUNT(*) FROM events")
	return count, errors.Wrap(err, "counting events")
}

// Attendance

func (repo eventRepository) IsAttending(ctx context.Context, eventID, userID string, exec ...core.DBExecutor) (bool, error) {
	db := repo.getExec(exec)
	var count int
	query := db.Rebind("SELECT COUNT(*) FROM event_attendees WHERE event_id = ? AND user_id = ?")
	if err := sqlx.GetContext(ctx, db, &count, query, eventID, userID); err != nil {
		return false, errors.Wrap(err, "counting attendance")
	}
	return count > 0, nil
}

func (repo eventRepository) AddAttendee(ctx context.Context, eventID, userID string, at time.Time, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	query := db.Rebind("INSERT INTO event_attendees (event_id, user_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING")
	_, err := db.ExecContext(ctx, query, eventID, userID, at.UTC())
	return errors.Wrap(err, "inserting attendee")
}

func (repo eventRepository) RemoveAttendee(ctx context.Context, eventID, userID string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	_, err := db.ExecContext(ctx, db.Rebind("DELETE FROM event_attendees WHERE event_id = ? AND user_id = ?"), eventID, userID)
	return errors.Wrap(err, "deleting attendee")
}

func (repo eventRepository) CountAttendees(ctx context.Context, eventID string, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind("SELECT COUNT(*) FROM event_attendees WHERE event_id = ?"), eventID)
	return count, errors.Wrap(err, "counting attendees")
}

func (repo eventRepository) QueryAttendeeIDs(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]string, error) {
	db := repo.getExec(exec)
	var ids []string
	query := db.Rebind("SELECT user_id FROM event_attendees WHERE event_id = ? ORDER BY created_at ASC, user_id")
	if err := sqlx.SelectContext(ctx, db, &ids, query, eventID); err != nil {
		return nil, errors.Wrap(err, "selecting attendees")
	}
	return ids, nil
}
