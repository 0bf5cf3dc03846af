// Package clientsync keeps a local copy of the event list in step with the
// push channel. It has no replay: after every (re)connect the full list is
// fetched again and the local copy is reset.
package clientsync

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
)

// View is a client-side collection of events keyed by id.
type View struct {
	mu     sync.RWMutex
	events map[string]model.EventView
}

// NewView returns an empty view.
func NewView() *View {
	return &View{events: make(map[string]model.EventView)}
}

// Reset replaces the whole collection.
func (v *View) Reset(list []model.EventView) {
	next := make(map[string]model.EventView, len(list))
	for _, e := range list {
		next[e.ID] = e
	}
	v.mu.Lock()
	v.events = next
	v.mu.Unlock()
}

// Apply folds one pushed frame into the view. Frames it does not know are
// ignored.
func (v *View) Apply(f notify.Frame) error {
	switch f.Event {
	case notify.EventNew:
		var p notify.EventPayload
		if err := decodePayload(f, &p); err != nil || p.Event == nil {
			return err
		}
		v.upsert(*p.Event)

	case notify.EventUpdated:
		var p notify.EventPayload
		if err := decodePayload(f, &p); err != nil || p.Event == nil {
			return err
		}
		v.replace(*p.Event)

	case notify.EventDeleted:
		var p notify.DeletedPayload
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		v.mu.Lock()
		delete(v.events, p.EventID)
		v.mu.Unlock()

	case notify.EventAttendee:
		var p notify.AttendeePayload
		if err := decodePayload(f, &p); err != nil || p.Event == nil {
			return err
		}
		e := *p.Event
		e.Attendees = dedupAttendees(e.Attendees)
		v.replace(e)

	case notify.EventAdminList:
		var p notify.ListPayload
		if err := decodePayload(f, &p); err != nil {
			return err
		}
		v.Reset(p.Events)
	}
	return nil
}

// Events returns a snapshot ordered by status and date.
func (v *View) Events() []model.EventView {
	v.mu.RLock()
	out := make([]model.EventView, 0, len(v.events))
	for _, e := range v.events {
		out = append(out, e)
	}
	v.mu.RUnlock()
	model.SortEvents(out)
	return out
}

// Get returns the event with id.
func (v *View) Get(id string) (model.EventView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.events[id]
	return e, ok
}

// Len returns the number of events held.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.events)
}

func (v *View) upsert(e model.EventView) {
	v.mu.Lock()
	v.events[e.ID] = e
	v.mu.Unlock()
}

// replace only updates events already held; events the caller may not see
// stay out of the view.
func (v *View) replace(e model.EventView) {
	v.mu.Lock()
	if _, ok := v.events[e.ID]; ok {
		v.events[e.ID] = e
	}
	v.mu.Unlock()
}

func decodePayload(f notify.Frame, dst any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s frame without data", f.Event)
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		return fmt.Errorf("decode %s frame: %w", f.Event, err)
	}
	return nil
}

// dedupAttendees keeps the first entry per email, or per id for entries
// without one.
func dedupAttendees(in []model.Person) []model.Person {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Person, 0, len(in))
	for _, p := range in {
		key := model.NormalizeEmail(p.Email)
		if key == "" {
			key = "id:" + p.ID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
