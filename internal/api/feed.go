package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

const feedWriteTimeout = 5 * time.Second

// Feed relays completed-generation events to websocket clients. It satisfies
// podcast.Publisher.
type Feed struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *feedClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger.With(slog.String("component", "feed")),
		clients: make(map[*feedClient]struct{}),
	}
}

// Publish forwards generation events. Other subjects are ignored.
func (f *Feed) Publish(subject string, data []byte) error {
	if subject != protocol.SubjectGenerationCompleted {
		return nil
	}
	envelope, err := json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{Type: "generation.completed", Data: data})
	if err != nil {
		return err
	}

	for _, c := range f.snapshot() {
		if err := c.write(envelope); err != nil {
			f.logger.Warn("dropping feed client", slog.String("error", err.Error()))
			f.remove(c)
		}
	}
	return nil
}

// Clients reports the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("feed upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &feedClient{conn: conn}

	f.mu.Lock()
	f.clients[client] = struct{}{}
	count := len(f.clients)
	f.mu.Unlock()
	f.logger.Debug("feed client connected", slog.String("remote", r.RemoteAddr), slog.Int("clients", count))

	// Clients never send anything meaningful; reading detects the close.
	go func() {
		defer f.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client.
func (f *Feed) Close() {
	for _, c := range f.snapshot() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		f.remove(c)
	}
}

func (f *Feed) snapshot() []*feedClient {
	f.mu.RLock()
	defer f.mu.RUnlock()
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	return clients
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	_, ok := f.clients[c]
	delete(f.clients, c)
	f.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}
