// Package memrepo is an in-process event and user store. Every operation
// runs under one mutex, which makes the conditional attendee updates atomic.
package memrepo

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// Store holds events and users in memory.
type Store struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	users  map[string]*model.User
	emails map[string]string
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		events: make(map[string]*model.Event),
		users:  make(map[string]*model.User),
		emails: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ─── Events ──────────────────────────────────────────────────────────────────

func (s *Store) Create(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("insert event: duplicate id %s", e.ID)
	}
	s.events[e.ID] = e.Clone()
	if u, ok := s.users[e.OrganizerID]; ok {
		u.CreatedEvents = appendUnique(u.CreatedEvents, e.ID)
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) Find(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	search := strings.ToLower(f.Search)
	s.mu.RLock()
	var out []model.Event
	for _, e := range s.events {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.VisibleOnly && (!e.IsApproved || e.IsDisabled) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Title), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, *e.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) Update(_ context.Context, e *model.Event) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[e.ID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if len(cur.Attendees) > e.MaxAttendees {
		return nil, fmt.Errorf("%w: max_attendees cannot be lower than the %d registered attendees",
			model.ErrValidation, len(cur.Attendees))
	}
	cur.Title = e.Title
	cur.Description = e.Description
	cur.Location = e.Location
	cur.Date = e.Date
	cur.Category = e.Category
	cur.MaxAttendees = e.MaxAttendees
	cur.ImageURL = e.ImageURL
	cur.Status = e.Status
	cur.UpdatedAt = s.now()
	return cur.Clone(), nil
}

func (s *Store) SetStatus(_ context.Context, id string, status model.Status) error {
	return s.mutate(id, func(e *model.Event) error {
		e.Status = status
		return nil
	}, nil)
}

func (s *Store) SetApproved(_ context.Context, id string) (*model.Event, error) {
	var out *model.Event
	err := s.mutate(id, func(e *model.Event) error {
		e.IsApproved = true
		return nil
	}, &out)
	return out, err
}

func (s *Store) ToggleDisabled(_ context.Context, id string) (*model.Event, error) {
	var out *model.Event
	err := s.mutate(id, func(e *model.Event) error {
		e.IsDisabled = !e.IsDisabled
		return nil
	}, &out)
	return out, err
}

func (s *Store) AddAttendee(_ context.Context, eventID, userID string) (*model.Event, error) {
	var out *model.Event
	err := s.mutate(eventID, func(e *model.Event) error {
		if e.HasAttendee(userID) {
			return fmt.Errorf("%w: already registered for this event", model.ErrConflict)
		}
		if e.IsFull() {
			return model.ErrCapacity
		}
		e.Attendees = append(e.Attendees, userID)
		if u, ok := s.users[userID]; ok {
			u.AttendingEvents = appendUnique(u.AttendingEvents, eventID)
		}
		return nil
	}, &out)
	return out, err
}

func (s *Store) RemoveAttendee(_ context.Context, eventID, userID string) (*model.Event, error) {
	var out *model.Event
	err := s.mutate(eventID, func(e *model.Event) error {
		if !e.HasAttendee(userID) {
			return fmt.Errorf("%w: not registered for this event", model.ErrConflict)
		}
		e.Attendees = remove(e.Attendees, userID)
		if u, ok := s.users[userID]; ok {
			u.AttendingEvents = remove(u.AttendingEvents, eventID)
		}
		return nil
	}, &out)
	return out, err
}

func (s *Store) Delete(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	delete(s.events, id)
	if u, ok := s.users[e.OrganizerID]; ok {
		u.CreatedEvents = remove(u.CreatedEvents, id)
	}
	for _, u := range s.users {
		u.AttendingEvents = remove(u.AttendingEvents, id)
	}
	return e, nil
}

// mutate applies fn to the stored event under the write lock. On success the
// updated record is copied to out when out is not nil.
func (s *Store) mutate(id string, fn func(*model.Event) error, out **model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	next := e.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = s.now()
	s.events[id] = next
	if out != nil {
		*out = next.Clone()
	}
	return nil
}

// ─── Users ───────────────────────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := model.NormalizeEmail(u.Email)
	if _, ok := s.emails[email]; ok {
		return fmt.Errorf("%w: email already registered", model.ErrConflict)
	}
	c := cloneUser(u)
	s.users[u.ID] = c
	s.emails[email] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[model.NormalizeEmail(email)]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (s *Store) SetRole(_ context.Context, id string, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.Role = role
	return nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.CreatedEvents = slices.Clone(u.CreatedEvents)
	c.AttendingEvents = slices.Clone(u.AttendingEvents)
	return &c
}

func appendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

func remove(list []string, id string) []string {
	return slices.DeleteFunc(list, func(v string) bool { return v == id })
}
