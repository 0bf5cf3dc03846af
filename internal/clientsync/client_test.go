package clientsync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu     sync.Mutex
	events []model.EventView
	calls  atomic.Int32
}

func (f *fakeLister) List(context.Context) ([]model.EventView, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.EventView(nil), f.events...), nil
}

func (f *fakeLister) set(events ...model.EventView) {
	f.mu.Lock()
	f.events = events
	f.mu.Unlock()
}

func TestClientFollowsHubAndResyncs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub(logger)
	srv := httptest.NewServer(notify.ServeWS(hub, nil, logger))
	defer srv.Close()

	lister := &fakeLister{}
	lister.set(*ev("a", model.StatusUpcoming, 10))

	var frames atomic.Int32
	c := NewClient(Config{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectDelay: 50 * time.Millisecond,
		Logger:         logger,
		OnFrame:        func(notify.Frame) { frames.Add(1) },
	}, lister)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return hub.Members(notify.ChannelUser) == 1 && c.View().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Send(notify.EventNew, notify.EventPayload{Event: ev("b", model.StatusUpcoming, 11)}, notify.ChannelUser)
	require.Eventually(t, func() bool {
		_, ok := c.View().Get("b")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Drop every connection; the client reconnects and replaces its view
	// with a fresh listing.
	lister.set(*ev("c", model.StatusOngoing, 1))
	hub.Close()
	require.Eventually(t, func() bool {
		_, hasC := c.View().Get("c")
		_, hasB := c.View().Get("b")
		return hasC && !hasB && lister.calls.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, frames.Load(), int32(1))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHTTPLister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: "invalid or expired token", Kind: "auth"})
			return
		}
		_ = json.NewEncoder(w).Encode([]model.EventView{*ev("a", model.StatusUpcoming, 3)})
	}))
	defer srv.Close()

	events, err := (&HTTPLister{BaseURL: srv.URL + "/", Token: "tok"}).List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ID)

	_, err = (&HTTPLister{BaseURL: srv.URL, Token: "bad"}).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or expired token")
}
