// Package model defines the core domain types for the event management system.
package model

import (
	"strings"
	"time"
)

// DefaultImageURL is used for events created without an image.
const DefaultImageURL = "/default-event.jpg"

// Role is the privilege level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Category is the fixed set of event categories.
type Category string

const (
	CategoryConference Category = "Conference"
	CategoryMeetup     Category = "Meetup"
	CategoryWorkshop   Category = "Workshop"
	CategorySocial     Category = "Social"
	CategoryOther      Category = "Other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryConference, CategoryMeetup, CategoryWorkshop, CategorySocial, CategoryOther:
		return true
	}
	return false
}

// Event is the stored event record.
type Event struct {
	ID           string    `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description" bson:"description"`
	Location     string    `json:"location" bson:"location"`
	Date         time.Time `json:"date" bson:"date"`
	Category     Category  `json:"category" bson:"category"`
	OrganizerID  string    `json:"organizer_id" bson:"organizer_id"`
	Attendees    []string  `json:"attendees" bson:"attendees"`
	MaxAttendees int       `json:"max_attendees" bson:"max_attendees"`
	ImageURL     string    `json:"image_url" bson:"image_url"`
	Status       Status    `json:"status" bson:"status"`
	IsApproved   bool      `json:"is_approved" bson:"is_approved"`
	IsDisabled   bool      `json:"is_disabled" bson:"is_disabled"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return len(e.Attendees) >= e.MaxAttendees
}

// HasAttendee reports whether userID is registered for the event.
func (e *Event) HasAttendee(userID string) bool {
	for _, id := range e.Attendees {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	c := *e
	c.Attendees = append([]string(nil), e.Attendees...)
	return &c
}

// User is the stored account record behind an Identity.
type User struct {
	ID              string    `json:"id" bson:"_id"`
	Name            string    `json:"name" bson:"name"`
	Email           string    `json:"email" bson:"email"`
	PasswordHash    string    `json:"-" bson:"password_hash"`
	Role            Role      `json:"role" bson:"role"`
	CreatedEvents   []string  `json:"created_events" bson:"created_events"`
	AttendingEvents []string  `json:"attending_events" bson:"attending_events"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// Identity returns the public identity of u.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Identity is what a credential resolves to.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin is nil safe.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Person is a resolved reference to a user as shown inside an event.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// EventView is an event with organizer and attendees resolved. It is what
// callers and push subscribers receive.
type EventView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Date          time.Time `json:"date"`
	Category      Category  `json:"category"`
	Organizer     Person    `json:"organizer"`
	Attendees     []Person  `json:"attendees"`
	AttendeeCount int       `json:"attendee_count"`
	MaxAttendees  int       `json:"max_attendees"`
	ImageURL      string    `json:"image_url"`
	Status        Status    `json:"status"`
	IsApproved    bool      `json:"is_approved"`
	IsDisabled    bool      `json:"is_disabled"`
	IsFull        bool      `json:"is_full"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EventFilter narrows a listing. Zero values match everything.
type EventFilter struct {
	Category Category
	Status   Status
	Search   string
	// VisibleOnly restricts to approved, enabled events.
	VisibleOnly bool
}

// EventDraft is the payload for creating a new event.
type EventDraft struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	Category     Category  `json:"category"`
	MaxAttendees int       `json:"max_attendees"`
	ImageURL     string    `json:"image_url"`
}

// EventPatch is the payload for updating an event. Nil fields are left as is.
type EventPatch struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Category     *Category  `json:"category,omitempty"`
	MaxAttendees *int       `json:"max_attendees,omitempty"`
	ImageURL     *string    `json:"image_url,omitempty"`
}

// UnregisterRequest is the optional payload of an unregister call.
type UnregisterRequest struct {
	AttendeeEmail string `json:"attendee_email"`
}

// RegisterUserRequest is the payload for creating an account.
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string    `json:"token"`
	User  *Identity `json:"user"`
}

// AttendeeRow is one line of an attendee CSV export.
type AttendeeRow struct {
	ID    string `csv:"id"`
	Name  string `csv:"name"`
	Email string `csv:"email"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
