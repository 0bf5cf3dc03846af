package clientsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/gorilla/websocket"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	readTimeout           = 60 * time.Second
	writeTimeout          = 10 * time.Second
)

// Lister fetches the current event list.
type Lister interface {
	List(ctx context.Context) ([]model.EventView, error)
}

// Config configures a Client.
type Config struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:8080/ws.
	URL   string
	Token string
	// Channel is joined after every connect. Defaults to the user channel.
	Channel        notify.Channel
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
	// OnFrame is called after each frame has been applied to the view.
	OnFrame func(notify.Frame)
}

// Client follows the push channel and keeps a View current.
type Client struct {
	cfg    Config
	lister Lister
	view   *View
	log    *slog.Logger
}

// NewClient returns a Client that resyncs through lister after each connect.
func NewClient(cfg Config, lister Lister) *Client {
	if cfg.Channel == "" {
		cfg.Channel = notify.ChannelUser
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, lister: lister, view: NewView(), log: cfg.Logger}
}

// View returns the view kept by c.
func (c *Client) View() *View { return c.view }

// Run connects and follows the push channel until ctx is done, reconnecting
// after a fixed delay whenever the connection is lost.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("push connection lost", "err", err, "retry_in", c.cfg.ReconnectDelay)
		select {
		case <-time.After(c.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	wc, _, err := c.cfg.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial push channel: %w", err)
	}
	defer wc.Close()

	stop := context.AfterFunc(ctx, func() { wc.Close() })
	defer stop()

	if err := c.join(wc); err != nil {
		return err
	}

	list, err := c.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("resync list: %w", err)
	}
	c.view.Reset(list)
	c.log.Info("push channel synced", "channel", c.cfg.Channel, "events", len(list))

	wc.SetReadDeadline(time.Now().Add(readTimeout))
	wc.SetPingHandler(func(data string) error {
		wc.SetReadDeadline(time.Now().Add(readTimeout))
		err := wc.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		_, raw, err := wc.ReadMessage()
		if err != nil {
			return fmt.Errorf("read push frame: %w", err)
		}
		wc.SetReadDeadline(time.Now().Add(readTimeout))

		var f notify.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Warn("malformed push frame", "err", err)
			continue
		}
		if err := c.view.Apply(f); err != nil {
			c.log.Warn("apply push frame", "event", f.Event, "err", err)
			continue
		}
		if c.cfg.OnFrame != nil {
			c.cfg.OnFrame(f)
		}
	}
}

func (c *Client) join(wc *websocket.Conn) error {
	signal := notify.SignalJoinUser
	if c.cfg.Channel == notify.ChannelAdmin {
		signal = notify.SignalJoinAdmin
	}
	msg, err := json.Marshal(notify.Frame{Event: signal})
	if err != nil {
		return err
	}
	wc.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wc.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("send join signal: %w", err)
	}
	return nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	if c.cfg.Token != "" {
		q := u.Query()
		q.Set("token", c.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// HTTPLister lists events through the REST API.
type HTTPLister struct {
	// BaseURL is the API root, e.g. http://localhost:8080.
	BaseURL string
	Token   string
	Client  *http.Client
}

// List implements Lister with GET /api/events.
func (l *HTTPLister) List(ctx context.Context) ([]model.EventView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(l.BaseURL, "/")+"/api/events", nil)
	if err != nil {
		return nil, err
	}
	if l.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.Token)
	}
	hc := l.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e model.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("list events: %s: %s", resp.Status, e.Error)
	}
	var events []model.EventView
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}
