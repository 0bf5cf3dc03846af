package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
		want Status
	}{
		{"later today", time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC), StatusOngoing},
		{"earlier today", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), StatusOngoing},
		{"last nanosecond of today", time.Date(2026, 3, 14, 23, 59, 59, 999999999, time.UTC), StatusOngoing},
		{"tomorrow", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), StatusUpcoming},
		{"next month", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), StatusUpcoming},
		{"yesterday late", time.Date(2026, 3, 13, 23, 59, 0, 0, time.UTC), StatusCompleted},
		{"last year", time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC), StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.date, now))
		})
	}
}

func TestDeriveStatusUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2026, 3, 14, 1, 0, 0, 0, loc)
	// 2026-03-13 21:00 UTC is 2026-03-14 02:00 in loc.
	date := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, StatusOngoing, DeriveStatus(date, now))
}

func TestDeriveStatusIsDeterministic(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for h := -72; h <= 72; h += 5 {
		date := now.Add(time.Duration(h) * time.Hour)
		first := DeriveStatus(date, now)
		assert.Equal(t, first, DeriveStatus(date, now), "offset %dh", h)
		assert.True(t, first.Valid())
	}
}

func TestEventDatedTodayIsOngoingAtAnyTime(t *testing.T) {
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	date := day.Add(9 * time.Hour)
	for m := 0; m < 24*60; m += 17 {
		now := day.Add(time.Duration(m) * time.Minute)
		assert.Equal(t, StatusOngoing, DeriveStatus(date, now), "now=%s", now)
	}
}

func TestSortEvents(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []EventView{
		{ID: "c", Status: StatusCompleted, Date: base},
		{ID: "x", Status: StatusCancelled, Date: base},
		{ID: "u2", Status: StatusUpcoming, Date: base.Add(48 * time.Hour)},
		{ID: "o", Status: StatusOngoing, Date: base.Add(time.Hour)},
		{ID: "u1", Status: StatusUpcoming, Date: base.Add(24 * time.Hour)},
	}
	SortEvents(events)

	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"o", "u1", "u2", "c", "x"}, ids)
}
