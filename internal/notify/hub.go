// Package notify fans lifecycle changes out to connected clients grouped in
// channels. Delivery is at most once per client and send call; nothing is
// persisted or replayed.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// DefaultQueueSize is the number of frames buffered per client.
const DefaultQueueSize = 64

var lastID = new(int64)

// Client is one connected subscriber. Frames queued for it are read from
// Queue by its transport. The queue is closed when the hub drops the client.
type Client struct {
	id       int64
	identity *model.Identity
	send     chan []byte
	once     sync.Once
}

// NewClient returns a client for identity, which may be nil for anonymous
// connections.
func NewClient(identity *model.Identity, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		id:       atomic.AddInt64(lastID, 1),
		identity: identity,
		send:     make(chan []byte, queueSize),
	}
}

func (c *Client) ID() int64                 { return c.id }
func (c *Client) Identity() *model.Identity { return c.identity }
func (c *Client) Queue() <-chan []byte      { return c.send }

func (c *Client) close() { c.once.Do(func() { close(c.send) }) }

// Hub keeps the set of connected clients and their channel memberships.
// It is created once per server and shared by every request.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[Channel]map[*Client]struct{}
	log     *slog.Logger
}

// NewHub creates and returns a new hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}, 64),
		rooms: map[Channel]map[*Client]struct{}{
			ChannelAdmin: make(map[*Client]struct{}),
			ChannelUser:  make(map[*Client]struct{}),
		},
		log: logger,
	}
}

// Register connects c. It does not join any channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("push client connected", "client", c.id)
}

// Unregister disconnects c, drops all its memberships and closes its queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	for _, members := range h.rooms {
		delete(members, c)
	}
	c.close()
	h.mu.Unlock()
	if ok {
		h.log.Debug("push client disconnected", "client", c.id)
	}
}

// Join adds c to ch. It reports false if c is not connected or ch is unknown.
func (h *Hub) Join(c *Client, ch Channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[ch]
	if !ok {
		return false
	}
	if _, ok := h.clients[c]; !ok {
		return false
	}
	members[c] = struct{}{}
	return true
}

// Leave removes c from ch.
func (h *Hub) Leave(c *Client, ch Channel) {
	h.mu.Lock()
	if members, ok := h.rooms[ch]; ok {
		delete(members, c)
	}
	h.mu.Unlock()
}

// Members returns the number of clients in ch.
func (h *Hub) Members(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ch])
}

// Connected returns the number of connected clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send delivers the event to every member of channels, once per client.
// A client whose queue is full is disconnected.
func (h *Hub) Send(event string, payload any, channels ...Channel) {
	h.publish(event, payload, false, false, channels)
}

// SendVolatile is like Send but silently skips clients whose queue is full.
func (h *Hub) SendVolatile(event string, payload any, channels ...Channel) {
	h.publish(event, payload, true, false, channels)
}

// Broadcast delivers the event to every connected client regardless of
// channel membership.
func (h *Hub) Broadcast(event string, payload any) {
	h.publish(event, payload, false, true, nil)
}

// SendTo delivers the event to c alone if it is still connected.
func (h *Hub) SendTo(c *Client, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		h.log.Error("encode push frame", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	for _, members := range h.rooms {
		clear(members)
	}
	h.mu.Unlock()
}

func (h *Hub) publish(event string, payload any, volatile, all bool, channels []Channel) {
	msg, err := encode(event, payload)
	if err != nil {
		h.log.Error("encode push frame", "event", event, "err", err)
		return
	}

	var slow []*Client
	seen := make(map[*Client]struct{})
	deliver := func(c *Client) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		select {
		case c.send <- msg:
		default:
			if !volatile {
				slow = append(slow, c)
			}
		}
	}

	h.mu.RLock()
	if all {
		for c := range h.clients {
			deliver(c)
		}
	}
	for _, ch := range channels {
		for c := range h.rooms[ch] {
			deliver(c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow push client", "client", c.id, "event", event)
		h.Unregister(c)
	}
}
