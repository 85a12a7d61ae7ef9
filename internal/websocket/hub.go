package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel is the Redis channel used to share events between instances.
const ClusterChannel = "eis_events"

const (
	clusterBuffer         = 256
	clusterPublishTimeout = 2 * time.Second
)

// Message is what every websocket client receives for one hub event.
type Message struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

type clusterPayload struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

// Hub fans hub events out to every connected websocket client and, when Redis
// is configured, to the clients of the other instances.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb        *redis.Client
	instanceID string
	outbound   chan []byte

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		outbound:   make(chan []byte, clusterBuffer),
		logger:     log,
	}
}

// Run serves register/unregister requests until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
		go h.publishToRedis(ctx)
	}
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("WebSocketHub", "Client registered", map[string]interface{}{"client_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("WebSocketHub", "Client unregistered", map[string]interface{}{"client_id": client.ID})
			}
			h.mu.Unlock()
		}
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify implements events.Subscriber. Cluster publishing happens on the Run
// goroutine; payloads are dropped when that backlog is full.
func (h *Hub) Notify(e events.Event) error {
	data, err := json.Marshal(Message{Type: e.EventType(), OccurredAt: e.Timestamp(), Data: e.Payload()})
	if err != nil {
		return err
	}

	h.deliver(data)

	if h.rdb != nil {
		payload, err := json.Marshal(clusterPayload{Origin: h.instanceID, Message: data})
		if err != nil {
			return err
		}
		select {
		case h.outbound <- payload:
		default:
			h.logger.Warn("WebSocketHub", "Cluster buffer full, dropping event", map[string]interface{}{"type": e.EventType()})
		}
	}
	return nil
}

// deliver sends data to all local clients. Clients whose buffer is full are
// dropped.
func (h *Hub) deliver(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("WebSocketHub", "Client Send buffer full, dropping client", map[string]interface{}{"client_id": client.ID})
			go h.Unregister(client)
		}
	}
}

func (h *Hub) publishToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-h.outbound:
			pctx, cancel := context.WithTimeout(ctx, clusterPublishTimeout)
			err := h.rdb.Publish(pctx, ClusterChannel, payload).Err()
			cancel()
			if err != nil {
				h.logger.Warn("WebSocketHub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("WebSocketHub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.Message)
		}
	}
}
