package notify

import (
	"encoding/json"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// Channel is a named broadcast group of connected clients.
type Channel string

const (
	ChannelAdmin Channel = "admin"
	ChannelUser  Channel = "user"
)

// Pushed event names.
const (
	EventNew         = "newEvent"
	EventUpdated     = "eventUpdated"
	EventDeleted     = "eventDeleted"
	EventAttendee    = "attendeeUpdate"
	EventAdminList   = "adminEventsUpdate"
	EventRoomJoined  = "roomJoined"
	EventError       = "error"
	SignalJoinAdmin  = "joinAdminRoom"
	SignalJoinUser   = "joinUserRoom"
	SignalLeaveAdmin = "leaveAdminRoom"
	SignalLeaveUser  = "leaveUserRoom"
)

// Frame is the wire format of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventPayload carries one event for newEvent and eventUpdated.
type EventPayload struct {
	Event     *model.EventView `json:"event"`
	Timestamp int64            `json:"timestamp,omitempty"`
}

// DeletedPayload carries the id of a deleted event.
type DeletedPayload struct {
	EventID   string `json:"eventId"`
	Timestamp int64  `json:"timestamp"`
}

// AttendeePayload reports a change in attendance.
type AttendeePayload struct {
	EventID       string           `json:"eventId"`
	AttendeeCount int              `json:"attendeeCount"`
	Event         *model.EventView `json:"event"`
}

// ListPayload carries a full listing for admin dashboards.
type ListPayload struct {
	Events []model.EventView `json:"events"`
}

// RoomPayload acknowledges a join.
type RoomPayload struct {
	Room Channel `json:"room"`
}

// ErrorPayload reports a rejected signal.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Timestamp returns t in Unix milliseconds.
func Timestamp(t time.Time) int64 { return t.UnixMilli() }

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
