package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResolver map[string]*model.Identity

func (r tokenResolver) Resolve(_ context.Context, token string) (*model.Identity, error) {
	if id, ok := r[token]; ok {
		return id, nil
	}
	return nil, model.ErrAuth
}

func startWS(t *testing.T) (*Hub, string) {
	t.Helper()
	h := NewHub(testLogger())
	resolver := tokenResolver{
		"admin-token": {ID: "a1", Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin},
		"user-token":  {ID: "u1", Name: "Bob", Email: "bob@example.com", Role: model.RoleUser},
	}
	srv := httptest.NewServer(ServeWS(h, resolver, testLogger()))
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wc, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { wc.Close() })
	return wc
}

func readFrame(t *testing.T, wc *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, wc.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, wc.ReadJSON(&f))
	return f
}

func waitMembers(t *testing.T, h *Hub, ch Channel, n int) {
	t.Helper()
	assert.Eventually(t, func() bool { return h.Members(ch) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSJoinByRoleParam(t *testing.T) {
	h, url := startWS(t)
	wc := dial(t, url+"?role=user")

	f := readFrame(t, wc)
	assert.Equal(t, EventRoomJoined, f.Event)
	waitMembers(t, h, ChannelUser, 1)

	h.Send(EventDeleted, DeletedPayload{EventID: "e9", Timestamp: 1}, ChannelAdmin, ChannelUser)
	f = readFrame(t, wc)
	assert.Equal(t, EventDeleted, f.Event)
	var p DeletedPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "e9", p.EventID)
}

func TestServeWSJoinSignal(t *testing.T) {
	h, url := startWS(t)
	wc := dial(t, url+"?token=admin-token")

	require.NoError(t, wc.WriteJSON(Frame{Event: SignalJoinAdmin}))
	f := readFrame(t, wc)
	require.Equal(t, EventRoomJoined, f.Event)
	var room RoomPayload
	require.NoError(t, json.Unmarshal(f.Data, &room))
	assert.Equal(t, ChannelAdmin, room.Room)
	waitMembers(t, h, ChannelAdmin, 1)

	require.NoError(t, wc.WriteJSON(Frame{Event: SignalJoinUser}))
	assert.Equal(t, EventRoomJoined, readFrame(t, wc).Event)
	waitMembers(t, h, ChannelUser, 1)
}

func TestServeWSRejectsAdminRoomForUsers(t *testing.T) {
	h, url := startWS(t)
	wc := dial(t, url+"?token=user-token&role=admin")

	assert.Equal(t, EventError, readFrame(t, wc).Event)
	assert.Equal(t, 0, h.Members(ChannelAdmin))
}

func TestServeWSRejectsBadToken(t *testing.T) {
	_, url := startWS(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestServeWSDisconnectLeavesChannels(t *testing.T) {
	h, url := startWS(t)
	wc := dial(t, url+"?role=user")
	readFrame(t, wc)
	waitMembers(t, h, ChannelUser, 1)

	wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	wc.Close()

	waitMembers(t, h, ChannelUser, 0)
	assert.Eventually(t, func() bool { return h.Connected() == 0 }, 2*time.Second, 10*time.Millisecond)
}
