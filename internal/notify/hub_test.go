package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(c *Client) []Frame {
	var frames []Frame
	for {
		select {
		case raw, ok := <-c.Queue():
			if !ok {
				return frames
			}
			var f Frame
			if err := json.Unmarshal(raw, &f); err == nil {
				frames = append(frames, f)
			}
		default:
			return frames
		}
	}
}

func names(frames []Frame) []string {
	var out []string
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func TestHubSendRoutesByChannel(t *testing.T) {
	h := NewHub(testLogger())
	admin := NewClient(nil, 8)
	user := NewClient(nil, 8)
	idle := NewClient(nil, 8)
	for _, c := range []*Client{admin, user, idle} {
		h.Register(c)
	}
	require.True(t, h.Join(admin, ChannelAdmin))
	require.True(t, h.Join(user, ChannelUser))

	h.Send(EventNew, DeletedPayload{EventID: "e1"}, ChannelAdmin)
	h.Send(EventUpdated, DeletedPayload{EventID: "e1"}, ChannelAdmin, ChannelUser)

	assert.Equal(t, []string{EventNew, EventUpdated}, names(drain(admin)))
	assert.Equal(t, []string{EventUpdated}, names(drain(user)))
	assert.Empty(t, drain(idle))
}

func TestHubSendDeliversOncePerClient(t *testing.T) {
	h := NewHub(testLogger())
	c := NewClient(nil, 8)
	h.Register(c)
	h.Join(c, ChannelAdmin)
	h.Join(c, ChannelUser)

	h.Send(EventDeleted, DeletedPayload{EventID: "e1"}, ChannelAdmin, ChannelUser)

	frames := drain(c)
	require.Len(t, frames, 1)
	var p DeletedPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &p))
	assert.Equal(t, "e1", p.EventID)
}

func TestHubBroadcastReachesEveryone(t *testing.T) {
	h := NewHub(testLogger())
	joined := NewClient(nil, 8)
	lurker := NewClient(nil, 8)
	h.Register(joined)
	h.Register(lurker)
	h.Join(joined, ChannelUser)

	h.Broadcast(EventUpdated, EventPayload{})

	assert.Len(t, drain(joined), 1)
	assert.Len(t, drain(lurker), 1)
}

func TestHubEvictsSlowClientOnReliableSend(t *testing.T) {
	h := NewHub(testLogger())
	slow := NewClient(nil, 1)
	h.Register(slow)
	h.Join(slow, ChannelUser)

	h.Send(EventUpdated, EventPayload{}, ChannelUser)
	h.Send(EventUpdated, EventPayload{}, ChannelUser)

	assert.Equal(t, 0, h.Connected())
	assert.Equal(t, 0, h.Members(ChannelUser))
	frames := drain(slow)
	assert.Len(t, frames, 1)
	_, ok := <-slow.Queue()
	assert.False(t, ok, "queue must be closed after eviction")
}

func TestHubVolatileSendSkipsSlowClient(t *testing.T) {
	h := NewHub(testLogger())
	slow := NewClient(nil, 1)
	h.Register(slow)
	h.Join(slow, ChannelUser)

	h.SendVolatile(EventDeleted, DeletedPayload{EventID: "a"}, ChannelUser)
	h.SendVolatile(EventDeleted, DeletedPayload{EventID: "b"}, ChannelUser)

	assert.Equal(t, 1, h.Connected())
	assert.Len(t, drain(slow), 1)
}

func TestHubUnregisterCleansMembership(t *testing.T) {
	h := NewHub(testLogger())
	c := NewClient(nil, 4)
	h.Register(c)
	h.Join(c, ChannelAdmin)
	h.Join(c, ChannelUser)

	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, 0, h.Members(ChannelAdmin))
	assert.Equal(t, 0, h.Members(ChannelUser))
	assert.False(t, h.Join(c, ChannelUser), "disconnected clients cannot join")

	h.Send(EventNew, EventPayload{}, ChannelUser)
	h.SendTo(c, EventNew, EventPayload{})
}

func TestHubJoinUnknownChannel(t *testing.T) {
	h := NewHub(testLogger())
	c := NewClient(nil, 4)
	h.Register(c)
	assert.False(t, h.Join(c, Channel("vip")))
}

func TestHubClose(t *testing.T) {
	h := NewHub(testLogger())
	c := NewClient(nil, 4)
	h.Register(c)
	h.Join(c, ChannelUser)
	h.Close()

	_, ok := <-c.Queue()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Members(ChannelUser))
}
