// Package ws streams live guided-session events to WebSocket subscribers,
// one topic per running session.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/claude/repcoach/internal/coach"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// sendBuffer bounds the per-subscriber event queue. A subscriber that
	// falls this far behind is dropped rather than back-pressuring the
	// engine, which emits events while holding its own lock.
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// conn wraps a single subscriber connection. Writes go through send so that
// Broadcast never touches the socket directly.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// Hub manages per-session subscriber sets and broadcasts engine events.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	topics map[uuid.UUID]map[*conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log,
		topics: make(map[uuid.UUID]map[*conn]struct{}),
	}
}

// HandleSession upgrades the request to a WebSocket subscribed to one
// session's event stream. The read loop exists only to detect disconnects
// and consume pings; clients send nothing meaningful.
func (h *Hub) HandleSession(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		h.log.Error("websocket accept failed", "session", sessionID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: ws, send: make(chan []byte, sendBuffer), cancel: cancel}

	h.mu.Lock()
	subs, ok := h.topics[sessionID]
	if !ok {
		subs = make(map[*conn]struct{})
		h.topics[sessionID] = subs
	}
	subs[c] = struct{}{}
	h.mu.Unlock()

	h.log.Info("websocket subscribed", "session", sessionID, "remote", r.RemoteAddr)

	// Writer: drains the send queue onto the socket with a bounded timeout
	// per write, so a stalled peer cannot wedge anything upstream.
	go func() {
		defer func() {
			h.remove(sessionID, c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			select {
			case data := <-c.send:
				wctx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
				err := ws.Write(wctx, websocket.MessageText, data)
				cancelWrite()
				if err != nil {
					h.log.Debug("websocket write failed", "session", sessionID, "error", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer func() {
			h.remove(sessionID, c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast queues an engine event for every subscriber of the session. It
// never blocks on a subscriber: the engine calls this from under its own
// lock, so a subscriber whose queue is full is dropped instead.
func (h *Hub) Broadcast(ctx context.Context, sessionID uuid.UUID, event coach.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("websocket marshal failed", "session", sessionID, "error", err)
		return
	}

	var slow []*conn
	h.mu.RLock()
	for c := range h.topics[sessionID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket subscriber", "session", sessionID)
		h.remove(sessionID, c)
	}
}

// CloseSession disconnects all subscribers of a finished session.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	h.mu.Lock()
	subs := h.topics[sessionID]
	delete(h.topics, sessionID)
	h.mu.Unlock()

	for c := range subs {
		c.cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "session ended")
	}
}

// SubscriberCount returns the number of subscribers for a session.
func (h *Hub) SubscriberCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[sessionID])
}

func (h *Hub) remove(sessionID uuid.UUID, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[sessionID]
	if _, ok := subs[c]; ok {
		c.cancel()
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, sessionID)
		}
		h.log.Info("websocket unsubscribed", "session", sessionID)
	}
}
