// Package repository implements the PostgreSQL event and user stores.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, location, date, category, organizer_id, attendees,
	max_attendees, image_url, status, is_approved, is_disabled, created_at, updated_at`

// EventRepository handles persistence for events and the user back-references
// that follow them.
type EventRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Date, &e.Category,
		&e.OrganizerID, &e.Attendees, &e.MaxAttendees, &e.ImageURL, &e.Status,
		&e.IsApproved, &e.IsDisabled, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event and records it in the organizer's created list,
// both in one transaction.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Title, e.Description, e.Location, e.Date, e.Category, e.OrganizerID, e.Attendees,
		e.MaxAttendees, e.ImageURL, e.Status, e.IsApproved, e.IsDisabled, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE users SET created_events = array_append(created_events, $1::text)
		 WHERE id = $2 AND NOT ($1::text = ANY(created_events))`,
		e.ID, e.OrganizerID,
	)
	if err != nil {
		return fmt.Errorf("record created event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single event or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Find returns the events matching f ordered by date.
func (r *EventRepository) Find(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.VisibleOnly {
		where = append(where, "is_approved AND NOT is_disabled")
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date ASC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update replaces the editable fields. The capacity guard lives in the WHERE
// clause so a concurrent registration cannot slip past a shrinking
// max_attendees.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) (*model.Event, error) {
	out, err := scanEvent(r.db.QueryRow(ctx,
		`UPDATE events
		 SET title = $2, description = $3, location = $4, date = $5, category = $6,
		     max_attendees = $7, image_url = $8, status = $9, updated_at = $10
		 WHERE id = $1 AND cardinality(attendees) <= $7
		 RETURNING `+eventColumns,
		e.ID, e.Title, e.Description, e.Location, e.Date, e.Category,
		e.MaxAttendees, e.ImageURL, e.Status, r.now(),
	))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if ok, err := r.exists(ctx, r.db, e.ID); err != nil {
		return nil, err
	} else if !ok {
		return nil, model.ErrNotFound
	}
	return nil, fmt.Errorf("%w: max_attendees cannot be lower than the registered attendees", model.ErrValidation)
}

// SetStatus stores a recomputed status.
func (r *EventRepository) SetStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetApproved marks the event approved.
func (r *EventRepository) SetApproved(ctx context.Context, id string) (*model.Event, error) {
	return r.updateReturning(ctx, "approve event",
		`UPDATE events SET is_approved = TRUE, updated_at = $2 WHERE id = $1 RETURNING `+eventColumns,
		id, r.now())
}

// ToggleDisabled flips is_disabled in place.
func (r *EventRepository) ToggleDisabled(ctx context.Context, id string) (*model.Event, error) {
	return r.updateReturning(ctx, "toggle event",
		`UPDATE events SET is_disabled = NOT is_disabled, updated_at = $2 WHERE id = $1 RETURNING `+eventColumns,
		id, r.now())
}

func (r *EventRepository) updateReturning(ctx context.Context, op, q string, args ...any) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// AddAttendee performs a concurrency-safe registration.
//
// A read-then-write registration lets two requests both observe a free seat
// and both append, overbooking the event. Here the membership and capacity
// checks are part of the UPDATE's WHERE clause, so PostgreSQL evaluates them
// against the locked row: the second of two racing statements re-reads the
// row after the first commits and no longer matches. Zero affected rows means
// one of the guards failed, and a follow-up read tells which.
//
// The user's attending list is updated in the same transaction.
func (r *EventRepository) AddAttendee(ctx context.Context, eventID, userID string) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`UPDATE events
		 SET attendees = array_append(attendees, $2::text), updated_at = $3
		 WHERE id = $1
		   AND NOT ($2::text = ANY(attendees))
		   AND cardinality(attendees) < max_attendees
		 RETURNING `+eventColumns,
		eventID, userID, r.now(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainRejectedAdd(ctx, tx, eventID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("append attendee: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET attending_events = array_append(attending_events, $1::text)
		 WHERE id = $2 AND NOT ($1::text = ANY(attending_events))`,
		eventID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("record attending event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return e, nil
}

func (r *EventRepository) explainRejectedAdd(ctx context.Context, tx pgx.Tx, eventID, userID string) error {
	var attending bool
	err := tx.QueryRow(ctx,
		`SELECT $2::text = ANY(attendees) FROM events WHERE id = $1`,
		eventID, userID,
	).Scan(&attending)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.ErrNotFound
	case err != nil:
		return fmt.Errorf("post-check event: %w", err)
	case attending:
		return fmt.Errorf("%w: already registered for this event", model.ErrConflict)
	}
	return model.ErrCapacity
}

// RemoveAttendee drops userID from the event and the event from the user's
// attending list in one transaction.
func (r *EventRepository) RemoveAttendee(ctx context.Context, eventID, userID string) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`UPDATE events
		 SET attendees = array_remove(attendees, $2::text), updated_at = $3
		 WHERE id = $1 AND $2::text = ANY(attendees)
		 RETURNING `+eventColumns,
		eventID, userID, r.now(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		ok, err := r.exists(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: not registered for this event", model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("remove attendee: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET attending_events = array_remove(attending_events, $1::text) WHERE id = $2`,
		eventID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("drop attending event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return e, nil
}

// Delete removes the event and strips its id from every back-reference.
func (r *EventRepository) Delete(ctx context.Context, id string) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`DELETE FROM events WHERE id = $1 RETURNING `+eventColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("delete event: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE users SET created_events = array_remove(created_events, $1::text) WHERE id = $2`,
		id, e.OrganizerID,
	)
	if err != nil {
		return nil, fmt.Errorf("drop created event: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE users SET attending_events = array_remove(attending_events, $1::text)
		 WHERE $1::text = ANY(attending_events)`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("drop attending events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return e, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *EventRepository) exists(ctx context.Context, q querier, id string) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check event exists: %w", err)
	}
	return ok, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
