package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
	readTimeout  = 60 * time.Second
	maxFrameSize = 4096
)

// Resolver turns the token query parameter into an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.Identity, error)
}

// ServeWS upgrades requests to WebSocket connections attached to h.
//
// The optional token query parameter authenticates the connection and the
// optional role parameter ("admin" or "user") joins a channel right away.
// Clients may join later by sending joinAdminRoom or joinUserRoom frames.
// If origins is empty every origin is accepted.
func ServeWS(h *Hub, resolver Resolver, logger *slog.Logger, origins ...string) http.HandlerFunc {
	upgr := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin(origins),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var ident *model.Identity
		if tok := r.URL.Query().Get("token"); tok != "" && resolver != nil {
			id, err := resolver.Resolve(r.Context(), tok)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ident = id
		}

		wc, err := upgr.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("push ws upgrade failed", "err", err)
			return
		}
		c := NewClient(ident, DefaultQueueSize)
		s := &session{hub: h, client: c, wc: wc, log: logger.With("client", c.ID())}
		h.Register(c)

		switch model.Role(r.URL.Query().Get("role")) {
		case model.RoleAdmin:
			s.join(ChannelAdmin)
		case model.RoleUser:
			s.join(ChannelUser)
		}

		go s.write()
		err = s.read()
		h.Unregister(c)
		if err != nil {
			s.log.Warn("push ws read failed", "err", err)
		}
	}
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

type session struct {
	hub    *Hub
	client *Client
	wc     *websocket.Conn
	log    *slog.Logger
}

func (s *session) join(ch Channel) {
	if ch == ChannelAdmin && !s.client.Identity().IsAdmin() {
		s.hub.SendTo(s.client, EventError, ErrorPayload{Message: "admin room requires an admin identity"})
		return
	}
	if s.hub.Join(s.client, ch) {
		s.hub.SendTo(s.client, EventRoomJoined, RoomPayload{Room: ch})
	}
}

func (s *session) read() error {
	s.wc.SetReadLimit(maxFrameSize)
	s.wc.SetReadDeadline(time.Now().Add(readTimeout))
	s.wc.SetPongHandler(func(string) error {
		return s.wc.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		op, raw, err := s.wc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return err
			}
			return nil // client disconnected
		}
		if op != websocket.TextMessage {
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.hub.SendTo(s.client, EventError, ErrorPayload{Message: "malformed frame"})
			continue
		}
		switch f.Event {
		case SignalJoinAdmin:
			s.join(ChannelAdmin)
		case SignalJoinUser:
			s.join(ChannelUser)
		case SignalLeaveAdmin:
			s.hub.Leave(s.client, ChannelAdmin)
		case SignalLeaveUser:
			s.hub.Leave(s.client, ChannelUser)
		default:
			s.hub.SendTo(s.client, EventError, ErrorPayload{Message: "unknown signal " + f.Event})
		}
	}
}

func (s *session) write() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	defer s.wc.Close()
	queue := s.client.Queue()
	for {
		select {
		case msg, ok := <-queue:
			s.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.wc.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.wc.WriteMessage(websocket.TextMessage, msg); err != nil {
				return // read side notices the closed conn
			}
		case <-t.C:
			s.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
