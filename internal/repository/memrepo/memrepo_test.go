package memrepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, capacity int) (*model.User, *model.Event) {
	t.Helper()
	ctx := context.Background()
	org := &model.User{ID: "org", Name: "Org", Email: "org@example.com", Role: model.RoleUser}
	require.NoError(t, s.CreateUser(ctx, org))
	e := &model.Event{
		ID:           "ev1",
		Title:        "Capacity Test",
		Description:  "Testing concurrent registrations",
		Location:     "Online",
		Date:         time.Now().Add(48 * time.Hour),
		Category:     model.CategoryWorkshop,
		OrganizerID:  org.ID,
		MaxAttendees: capacity,
		Status:       model.StatusUpcoming,
	}
	require.NoError(t, s.Create(ctx, e))
	return org, e
}

func TestConcurrentAddAttendee(t *testing.T) {
	s := New()
	const capacity = 5
	const users = 20
	_, ev := seed(t, s, capacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	var success, full int64
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := s.AddAttendee(ctx, ev.ID, uid)
			switch {
			case err == nil:
				atomic.AddInt64(&success, 1)
			case errors.Is(err, model.ErrCapacity):
				atomic.AddInt64(&full, 1)
			default:
				t.Errorf("AddAttendee unexpected error: %v", err)
			}
		}(fmt.Sprintf("user-%02d", i))
	}
	wg.Wait()

	stored, err := s.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Attendees, capacity)
	assert.EqualValues(t, capacity, success)
	assert.EqualValues(t, users-capacity, full)
}

func TestAddRemoveAttendeeMaintainsBackRefs(t *testing.T) {
	s := New()
	_, ev := seed(t, s, 2)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "u1", Email: "u1@example.com"}))

	_, err := s.AddAttendee(ctx, ev.ID, "u1")
	require.NoError(t, err)
	_, err = s.AddAttendee(ctx, ev.ID, "u1")
	assert.ErrorIs(t, err, model.ErrConflict)

	u, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{ev.ID}, u.AttendingEvents)

	_, err = s.RemoveAttendee(ctx, ev.ID, "u1")
	require.NoError(t, err)
	_, err = s.RemoveAttendee(ctx, ev.ID, "u1")
	assert.ErrorIs(t, err, model.ErrConflict)

	u, _ = s.GetUserByID(ctx, "u1")
	assert.Empty(t, u.AttendingEvents)
}

func TestDeleteCascades(t *testing.T) {
	s := New()
	org, ev := seed(t, s, 2)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "u1", Email: "u1@example.com"}))
	_, err := s.AddAttendee(ctx, ev.ID, "u1")
	require.NoError(t, err)

	_, err = s.Delete(ctx, ev.ID)
	require.NoError(t, err)

	_, err = s.GetByID(ctx, ev.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	o, _ := s.GetUserByID(ctx, org.ID)
	assert.NotContains(t, o.CreatedEvents, ev.ID)
	u, _ := s.GetUserByID(ctx, "u1")
	assert.NotContains(t, u.AttendingEvents, ev.ID)

	_, err = s.Delete(ctx, ev.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateRejectsCapacityBelowAttendance(t *testing.T) {
	s := New()
	_, ev := seed(t, s, 2)
	ctx := context.Background()
	_, err := s.AddAttendee(ctx, ev.ID, "a")
	require.NoError(t, err)
	_, err = s.AddAttendee(ctx, ev.ID, "b")
	require.NoError(t, err)

	next := ev.Clone()
	next.MaxAttendees = 1
	_, err = s.Update(ctx, next)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFindFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	add := func(id, title string, cat model.Category, approved, disabled bool, offset int) {
		require.NoError(t, s.Create(ctx, &model.Event{
			ID: id, Title: title, Description: "d", Category: cat,
			IsApproved: approved, IsDisabled: disabled, MaxAttendees: 1,
			Date: base.AddDate(0, 0, offset),
		}))
	}
	add("a", "Go Conference", model.CategoryConference, true, false, 3)
	add("b", "Rust meetup", model.CategoryMeetup, true, false, 1)
	add("c", "Hidden GO", model.CategoryConference, false, false, 2)
	add("d", "Off go", model.CategoryConference, true, true, 0)

	all, err := s.Find(ctx, model.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(all))

	visible, _ := s.Find(ctx, model.EventFilter{VisibleOnly: true})
	assert.Equal(t, []string{"b", "a"}, ids(visible))

	gos, _ := s.Find(ctx, model.EventFilter{Search: "go", Category: model.CategoryConference})
	assert.Equal(t, []string{"d", "c", "a"}, ids(gos))
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "1", Email: "Same@Example.com"}))
	err := s.CreateUser(ctx, &model.User{ID: "2", Email: "same@example.com"})
	assert.ErrorIs(t, err, model.ErrConflict)

	u, err := s.GetUserByEmail(ctx, " SAME@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)
}

func ids(events []model.Event) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
