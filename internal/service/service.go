// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/google/uuid"
)

// Option configures an EventService.
type Option func(*EventService)

// WithClock replaces the time source used for status derivation and
// notification timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *EventService) { s.now = now }
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events   EventStore
	users    UserStore
	idp      IdentityProvider
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEventService constructs an EventService with its dependencies. A nil
// notifier disables push notifications.
func NewEventService(
	events EventStore,
	users UserStore,
	idp IdentityProvider,
	notifier Notifier,
	logger *slog.Logger,
	opts ...Option,
) *EventService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &EventService{
		events:   events,
		users:    users,
		idp:      idp,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the draft and stores a new event organized by caller.
// Events created by admins are approved immediately.
func (s *EventService) Create(ctx context.Context, draft model.EventDraft, caller *model.Identity) (*model.EventView, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: sign in to create events", model.ErrAuth)
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	e := &model.Event{
		ID:           uuid.NewString(),
		Title:        draft.Title,
		Description:  draft.Description,
		Location:     draft.Location,
		Date:         draft.Date,
		Category:     draft.Category,
		OrganizerID:  caller.ID,
		Attendees:    []string{},
		MaxAttendees: draft.MaxAttendees,
		ImageURL:     draft.ImageURL,
		Status:       model.DeriveStatus(draft.Date, now),
		IsApproved:   caller.IsAdmin(),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	view, err := s.view(ctx, e)
	if err != nil {
		return nil, err
	}
	payload := notify.EventPayload{Event: view, Timestamp: notify.Timestamp(now)}
	if e.IsApproved {
		s.notifier.Send(notify.EventNew, payload, notify.ChannelAdmin, notify.ChannelUser)
	} else {
		s.notifier.Send(notify.EventNew, payload, notify.ChannelAdmin)
	}
	s.logger.Info("event created", "event_id", e.ID, "organizer_id", caller.ID, "approved", e.IsApproved)
	return view, nil
}

// List returns the events matching f, ordered by status and date. Callers
// that are not admins only see approved, enabled events. Admin listings also
// push the complete list to the admin channel, even when f narrows the
// response.
func (s *EventService) List(ctx context.Context, f model.EventFilter, caller *model.Identity) ([]model.EventView, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", model.ErrValidation, f.Category)
	}
	isAdmin := caller.IsAdmin()
	f.VisibleOnly = !isAdmin

	views, err := s.list(ctx, f)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return views, nil
	}

	full := views
	if f != (model.EventFilter{}) {
		if full, err = s.list(ctx, model.EventFilter{}); err != nil {
			s.logger.Warn("admin list push skipped", "err", err)
			return views, nil
		}
	}
	s.notifier.Send(notify.EventAdminList, notify.ListPayload{Events: full}, notify.ChannelAdmin)
	return views, nil
}

func (s *EventService) list(ctx context.Context, f model.EventFilter) ([]model.EventView, error) {
	events, err := s.events.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	now := s.now()
	matched := events[:0]
	for i := range events {
		s.refreshStatus(ctx, &events[i], now)
		if f.Status != "" && events[i].Status != f.Status {
			continue
		}
		matched = append(matched, events[i])
	}

	views, err := s.views(ctx, matched)
	if err != nil {
		return nil, err
	}
	model.SortEvents(views)
	return views, nil
}

// Get returns a single event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*model.EventView, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refreshStatus(ctx, e, s.now())
	return s.view(ctx, e)
}

// Update applies patch to the event. Only admins and the organizer may edit
// an event; anyone else is told it does not exist.
func (s *EventService) Update(ctx context.Context, id string, patch model.EventPatch, caller *model.Identity) (*model.EventView, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: sign in to edit events", model.ErrAuth)
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(e, caller) {
		return nil, fmt.Errorf("%w: event not found or not authorized", model.ErrNotFound)
	}
	if err := patch.Apply(e); err != nil {
		return nil, err
	}

	now := s.now()
	e.Status = model.DeriveStatus(e.Date, now)
	updated, err := s.events.Update(ctx, e)
	if err != nil {
		return nil, wrapStoreErr("update event", err)
	}

	view, err := s.view(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(notify.EventUpdated, notify.EventPayload{Event: view, Timestamp: notify.Timestamp(now)},
		notify.ChannelAdmin, notify.ChannelUser)
	return view, nil
}

// Delete removes the event and every reference to it.
func (s *EventService) Delete(ctx context.Context, id string, caller *model.Identity) error {
	if caller == nil {
		return fmt.Errorf("%w: sign in to delete events", model.ErrAuth)
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(e, caller) {
		return fmt.Errorf("%w: only the organizer or an admin can delete this event", model.ErrPermission)
	}
	if _, err := s.events.Delete(ctx, id); err != nil {
		return wrapStoreErr("delete event", err)
	}

	s.notifier.SendVolatile(notify.EventDeleted,
		notify.DeletedPayload{EventID: id, Timestamp: notify.Timestamp(s.now())},
		notify.ChannelAdmin, notify.ChannelUser)
	s.logger.Info("event deleted", "event_id", id, "by", caller.ID)
	return nil
}

// Register books a seat for caller. The capacity check and the append are a
// single conditional update in the store, so concurrent callers can never
// overbook an event.
func (s *EventService) Register(ctx context.Context, id string, caller *model.Identity) (*model.EventView, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: sign in to register", model.ErrAuth)
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsDisabled && !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: registration for this event is disabled", model.ErrPermission)
	}

	updated, err := s.events.AddAttendee(ctx, id, caller.ID)
	if err != nil {
		return nil, wrapStoreErr("register for event", err)
	}
	return s.attendanceChanged(ctx, updated)
}

// Unregister removes an attendee. Admins may name any attendee by email and
// get NotFound if that person is not attending; everyone else can only
// remove themselves.
func (s *EventService) Unregister(ctx context.Context, id string, caller *model.Identity, targetEmail string) (*model.EventView, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: sign in to unregister", model.ErrAuth)
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsDisabled && !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: registration for this event is disabled", model.ErrPermission)
	}

	targetEmail = model.NormalizeEmail(targetEmail)
	if targetEmail != "" && !caller.IsAdmin() {
		if targetEmail != model.NormalizeEmail(caller.Email) {
			return nil, fmt.Errorf("%w: only admins can unregister other attendees", model.ErrPermission)
		}
		targetEmail = ""
	}
	// An admin naming an email always acts on that attendee, even themselves.
	byAdmin := targetEmail != ""
	target := caller.ID
	if byAdmin {
		ident, err := s.idp.LookupByEmail(ctx, targetEmail)
		if err != nil {
			return nil, fmt.Errorf("lookup attendee: %w", err)
		}
		if ident == nil {
			return nil, fmt.Errorf("%w: no user with email %s", model.ErrNotFound, targetEmail)
		}
		target = ident.ID
	}

	updated, err := s.events.RemoveAttendee(ctx, id, target)
	if err != nil {
		if byAdmin && errors.Is(err, model.ErrConflict) {
			return nil, fmt.Errorf("%w: %s is not registered for this event", model.ErrNotFound, targetEmail)
		}
		return nil, wrapStoreErr("unregister from event", err)
	}
	return s.attendanceChanged(ctx, updated)
}

// Approve makes an event visible to non-admin users.
func (s *EventService) Approve(ctx context.Context, id string, caller *model.Identity) (*model.EventView, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can approve events", model.ErrPermission)
	}
	updated, err := s.events.SetApproved(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("approve event", err)
	}
	s.refreshStatus(ctx, updated, s.now())

	view, err := s.view(ctx, updated)
	if err != nil {
		return nil, err
	}
	payload := notify.EventPayload{Event: view, Timestamp: notify.Timestamp(s.now())}
	s.notifier.Send(notify.EventUpdated, payload, notify.ChannelAdmin)
	s.notifier.Send(notify.EventNew, payload, notify.ChannelUser)
	s.logger.Info("event approved", "event_id", id, "by", caller.ID)
	return view, nil
}

// ToggleDisabled flips the disabled flag of an event.
func (s *EventService) ToggleDisabled(ctx context.Context, id string, caller *model.Identity) (*model.EventView, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can enable or disable events", model.ErrPermission)
	}
	updated, err := s.events.ToggleDisabled(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("toggle event", err)
	}
	s.refreshStatus(ctx, updated, s.now())

	view, err := s.view(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.notifier.Broadcast(notify.EventUpdated, notify.EventPayload{Event: view})
	s.logger.Info("event toggled", "event_id", id, "disabled", updated.IsDisabled, "by", caller.ID)
	return view, nil
}

// Attendees returns the resolved attendee list of an event in registration
// order. Only admins and the organizer may read it.
func (s *EventService) Attendees(ctx context.Context, id string, caller *model.Identity) ([]model.AttendeeRow, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: sign in to export attendees", model.ErrAuth)
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(e, caller) {
		return nil, fmt.Errorf("%w: event not found or not authorized", model.ErrNotFound)
	}
	people, err := s.people(ctx, e.Attendees)
	if err != nil {
		return nil, err
	}
	rows := make([]model.AttendeeRow, 0, len(e.Attendees))
	for _, uid := range e.Attendees {
		p := people[uid]
		rows = append(rows, model.AttendeeRow{ID: uid, Name: p.Name, Email: p.Email})
	}
	return rows, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *EventService) attendanceChanged(ctx context.Context, e *model.Event) (*model.EventView, error) {
	s.refreshStatus(ctx, e, s.now())
	view, err := s.view(ctx, e)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(notify.EventAttendee,
		notify.AttendeePayload{EventID: e.ID, AttendeeCount: len(e.Attendees), Event: view},
		notify.ChannelAdmin, notify.ChannelUser)
	return view, nil
}

func (s *EventService) load(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get event", err)
	}
	return e, nil
}

// refreshStatus recomputes the status of e and writes a changed value back.
// A failed write is logged and retried on a later read.
func (s *EventService) refreshStatus(ctx context.Context, e *model.Event, now time.Time) {
	status := model.DeriveStatus(e.Date, now)
	if status == e.Status {
		return
	}
	e.Status = status
	if err := s.events.SetStatus(ctx, e.ID, status); err != nil {
		s.logger.Warn("status write-through failed", "event_id", e.ID, "status", status, "err", err)
	}
}

func (s *EventService) view(ctx context.Context, e *model.Event) (*model.EventView, error) {
	views, err := s.views(ctx, []model.Event{*e})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views resolves organizers and attendees of events with one user lookup.
func (s *EventService) views(ctx context.Context, events []model.Event) ([]model.EventView, error) {
	var ids []string
	for _, e := range events {
		ids = append(ids, e.OrganizerID)
		ids = append(ids, e.Attendees...)
	}
	people, err := s.people(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.EventView, 0, len(events))
	for _, e := range events {
		attendees := make([]model.Person, 0, len(e.Attendees))
		for _, uid := range e.Attendees {
			attendees = append(attendees, people[uid])
		}
		views = append(views, model.EventView{
			ID:            e.ID,
			Title:         e.Title,
			Description:   e.Description,
			Location:      e.Location,
			Date:          e.Date,
			Category:      e.Category,
			Organizer:     people[e.OrganizerID],
			Attendees:     attendees,
			AttendeeCount: len(e.Attendees),
			MaxAttendees:  e.MaxAttendees,
			ImageURL:      e.ImageURL,
			Status:        e.Status,
			IsApproved:    e.IsApproved,
			IsDisabled:    e.IsDisabled,
			IsFull:        e.IsFull(),
			CreatedAt:     e.CreatedAt,
			UpdatedAt:     e.UpdatedAt,
		})
	}
	return views, nil
}

// people maps every id to a Person. Ids without an account map to a bare
// reference.
func (s *EventService) people(ctx context.Context, ids []string) (map[string]model.Person, error) {
	out := make(map[string]model.Person, len(ids))
	var unique []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = model.Person{ID: id}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return out, nil
	}
	users, err := s.users.GetUsersByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = model.Person{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	}
	return out, nil
}

func canManage(e *model.Event, caller *model.Identity) bool {
	return caller.IsAdmin() || (caller != nil && e.OrganizerID == caller.ID)
}

// wrapStoreErr keeps domain errors as they are and adds context to anything
// unexpected.
func wrapStoreErr(op string, err error) error {
	if model.ErrorKind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
