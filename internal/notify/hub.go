package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/events"
)

const (
	// clientBuffer is the per-client FIFO depth. A client that falls
	// this far behind is dropped rather than allowed to stall the hub.
	clientBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// ChangeMessage is the wire format pushed to subscribers.
type ChangeMessage struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// client is one websocket subscriber with its own outbound queue.
type client struct {
	id   string
	send chan []byte
}

// Hub fans domain events out to websocket subscribers. Publishing never
// blocks: a full client queue disconnects that client only.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *zap.Logger
}

// NewHub creates the hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger,
	}
}

// Attach subscribes the hub to every event the dispatcher sees.
func (h *Hub) Attach(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		h.Broadcast(event)
		return nil
	})
}

// Broadcast enqueues the event for every connected client, in arrival
// order per client. Slow clients are removed, never waited on.
func (h *Hub) Broadcast(event events.Event) {
	msg := ChangeMessage{
		EventID:   event.ID,
		Type:      string(event.Type),
		TaskID:    event.TaskID,
		ActorID:   event.ActorID,
		Timestamp: event.Timestamp,
		Payload:   event.Payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("change message marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	stale := make([]*client, 0)
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Warn("dropping slow websocket client", zap.String("client_id", c.id))
		h.remove(c)
	}
}

// ClientCount reports current subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the connection lifecycle for one subscriber. It blocks
// until the peer disconnects or is dropped, so it is called from the
// fiber websocket handler.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{
		id:   uuid.NewString(),
		send: make(chan []byte, clientBuffer),
	}
	h.add(c)
	defer h.remove(c)

	h.logger.Debug("websocket client connected", zap.String("client_id", c.id))

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, c, done)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	h.mu.Unlock()
	close(c.send)
}

// readLoop drains inbound frames to keep pong handling alive. The feed
// is one-way; client frames carry no commands.
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-done:
			return
		case data, ok := <-c.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "buffer overflow"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
