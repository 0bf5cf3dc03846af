package service

import (
	"context"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
)

// EventStore persists events. Mutations that change attendance or flags are
// single atomic operations in the backing store; implementations return
// model.ErrNotFound, model.ErrConflict and model.ErrCapacity wrapped with
// context.
type EventStore interface {
	// Create inserts e and appends its id to the organizer's created events.
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// Find returns events matching f, ordered by date. Status in f is ignored
	// since stored statuses may be stale.
	Find(ctx context.Context, f model.EventFilter) ([]model.Event, error)
	// Update replaces the editable fields of e. It fails with
	// model.ErrValidation if e.MaxAttendees is below the stored attendee count.
	Update(ctx context.Context, e *model.Event) (*model.Event, error)
	SetStatus(ctx context.Context, id string, status model.Status) error
	SetApproved(ctx context.Context, id string) (*model.Event, error)
	ToggleDisabled(ctx context.Context, id string) (*model.Event, error)
	// AddAttendee appends userID only if it is absent and a seat is free.
	AddAttendee(ctx context.Context, eventID, userID string) (*model.Event, error)
	// RemoveAttendee fails with model.ErrConflict if userID is not attending.
	RemoveAttendee(ctx context.Context, eventID, userID string) (*model.Event, error)
	// Delete removes the event and strips its id from every user's created
	// and attending lists. It returns the deleted record.
	Delete(ctx context.Context, id string) (*model.Event, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
	SetRole(ctx context.Context, id string, role model.Role) error
}

// IdentityProvider resolves credentials and email addresses to identities.
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (*model.Identity, error)
	// LookupByEmail returns nil without error if no account matches.
	LookupByEmail(ctx context.Context, email string) (*model.Identity, error)
}

// Notifier fans lifecycle changes out to connected clients. Implementations
// must not block.
type Notifier interface {
	Send(event string, payload any, channels ...notify.Channel)
	SendVolatile(event string, payload any, channels ...notify.Channel)
	Broadcast(event string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Send(string, any, ...notify.Channel)         {}
func (nopNotifier) SendVolatile(string, any, ...notify.Channel) {}
func (nopNotifier) Broadcast(string, any)                       {}
