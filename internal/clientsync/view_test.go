package clientsync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, event string, payload any) notify.Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return notify.Frame{Event: event, Data: data}
}

func ev(id string, status model.Status, day int) *model.EventView {
	return &model.EventView{
		ID:     id,
		Title:  "event " + id,
		Status: status,
		Date:   time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC),
	}
}

func TestViewApply(t *testing.T) {
	v := NewView()
	v.Reset([]model.EventView{*ev("a", model.StatusUpcoming, 10)})

	require.NoError(t, v.Apply(frame(t, notify.EventNew, notify.EventPayload{Event: ev("b", model.StatusOngoing, 5)})))
	assert.Equal(t, 2, v.Len())

	// Updates for events not held are ignored.
	require.NoError(t, v.Apply(frame(t, notify.EventUpdated, notify.EventPayload{Event: ev("zzz", model.StatusUpcoming, 1)})))
	_, ok := v.Get("zzz")
	assert.False(t, ok)

	renamed := ev("a", model.StatusUpcoming, 10)
	renamed.Title = "renamed"
	require.NoError(t, v.Apply(frame(t, notify.EventUpdated, notify.EventPayload{Event: renamed})))
	got, _ := v.Get("a")
	assert.Equal(t, "renamed", got.Title)

	events := v.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID, "ongoing sorts first")

	require.NoError(t, v.Apply(frame(t, notify.EventDeleted, notify.DeletedPayload{EventID: "b", Timestamp: 1})))
	_, ok = v.Get("b")
	assert.False(t, ok)
	require.NoError(t, v.Apply(frame(t, notify.EventDeleted, notify.DeletedPayload{EventID: "b"})))
}

func TestViewAttendeeUpdateDedups(t *testing.T) {
	v := NewView()
	v.Reset([]model.EventView{*ev("a", model.StatusUpcoming, 10)})

	withDupes := ev("a", model.StatusUpcoming, 10)
	withDupes.Attendees = []model.Person{
		{ID: "1", Email: "x@example.com"},
		{ID: "2", Email: "X@Example.com"},
		{ID: "3"},
		{ID: "3"},
		{ID: "4", Email: "y@example.com"},
	}
	require.NoError(t, v.Apply(frame(t, notify.EventAttendee, notify.AttendeePayload{
		EventID: "a", AttendeeCount: 5, Event: withDupes,
	})))

	got, _ := v.Get("a")
	var ids []string
	for _, p := range got.Attendees {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids)
}

func TestViewAdminListReplacesAll(t *testing.T) {
	v := NewView()
	v.Reset([]model.EventView{*ev("old", model.StatusUpcoming, 1)})

	require.NoError(t, v.Apply(frame(t, notify.EventAdminList, notify.ListPayload{
		Events: []model.EventView{*ev("n1", model.StatusCompleted, 1), *ev("n2", model.StatusUpcoming, 2)},
	})))
	assert.Equal(t, 2, v.Len())
	_, ok := v.Get("old")
	assert.False(t, ok)
}

func TestViewRejectsMalformed(t *testing.T) {
	v := NewView()
	assert.Error(t, v.Apply(notify.Frame{Event: notify.EventNew}))
	assert.Error(t, v.Apply(notify.Frame{Event: notify.EventDeleted, Data: json.RawMessage(`"nope"`)}))
	assert.NoError(t, v.Apply(notify.Frame{Event: notify.EventRoomJoined, Data: json.RawMessage(`{"room":"user"}`)}))
	assert.Zero(t, v.Len())
}
