package model

import (
	"sort"
	"time"
)

// Status is the lifecycle state of an event. It is derived from the event
// date and is never authoritative on its own.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Rank orders statuses for listing. Cancelled and unknown values sort last.
func (s Status) Rank() int {
	switch s {
	case StatusOngoing:
		return 0
	case StatusUpcoming:
		return 1
	case StatusCompleted:
		return 2
	}
	return 3
}

// DeriveStatus maps an event date to its lifecycle status relative to now.
// Days are calendar days in now's location: an event dated today is ongoing
// at any time of the day.
func DeriveStatus(date, now time.Time) Status {
	startOfToday := startOfDay(now)
	eventDay := startOfDay(date.In(now.Location()))
	switch {
	case eventDay.Equal(startOfToday):
		return StatusOngoing
	case date.After(now):
		return StatusUpcoming
	case now.After(eventDay.AddDate(0, 0, 1).Add(-time.Nanosecond)):
		return StatusCompleted
	}
	return StatusUpcoming
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SortEvents orders views by status rank, then by ascending date.
func SortEvents(events []EventView) {
	sort.SliceStable(events, func(i, j int) bool {
		ri, rj := events[i].Status.Rank(), events[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return events[i].Date.Before(events[j].Date)
	})
}
