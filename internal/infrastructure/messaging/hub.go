package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/events"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
)

// Hub manages all connected visitor and observer clients and fans events
// out to them. Registration flows through channels consumed by Run; sends
// are non-blocking so one slow observer never stalls ingestion of the next
// entry.
type Hub struct {
	clients   map[string]*Client // channelID -> client
	observers map[*Client]bool

	register   chan *Client
	unregister chan *Client

	snapshotMu sync.RWMutex
	snapshotFn func() any

	onDisconnectMu sync.RWMutex
	onDisconnect   func(channelID string)

	tickInterval time.Duration
	logger       *logging.ChanneledLogger
	mu           sync.RWMutex
}

// NewHub creates a hub. tickInterval controls the periodic session
// snapshot broadcast to observers; zero disables it.
func NewHub(tickInterval time.Duration, logger *logging.ChanneledLogger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		observers:    make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		tickInterval: tickInterval,
		logger:       logger,
	}
}

// SetSnapshotFunc installs the provider for the periodic observer snapshot.
func (h *Hub) SetSnapshotFunc(fn func() any) {
	h.snapshotMu.Lock()
	defer h.snapshotMu.Unlock()
	h.snapshotFn = fn
}

// SetDisconnectFunc installs the callback invoked after a client is removed.
func (h *Hub) SetDisconnectFunc(fn func(channelID string)) {
	h.onDisconnectMu.Lock()
	defer h.onDisconnectMu.Unlock()
	h.onDisconnect = fn
}

// Run starts the hub's main loop. This should be run as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	interval := h.tickInterval
	if interval <= 0 {
		interval = time.Hour // effectively disabled
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ChannelID] = client
			if client.Role == RoleObserver {
				h.observers[client] = true
			}
			h.mu.Unlock()
			h.logger.Channel().Info("Channel client registered", "channelId", client.ChannelID, "role", client.Role)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ChannelID]; ok {
				delete(h.clients, client.ChannelID)
				delete(h.observers, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.Channel().Info("Channel client unregistered", "channelId", client.ChannelID, "role", client.Role)

			h.onDisconnectMu.RLock()
			fn := h.onDisconnect
			h.onDisconnectMu.RUnlock()
			if fn != nil {
				fn(client.ChannelID)
			}

		case <-ticker.C:
			if h.tickInterval > 0 {
				h.broadcastSnapshot()
			}

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register queues a client for registration.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister queues a client for unregistration.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToObservers sends an event to every connected observer. Delivery
// is best-effort per recipient: a full send buffer drops the message for
// that observer only.
func (h *Hub) BroadcastToObservers(event string, data any) {
	message, err := marshalEnvelope(event, data)
	if err != nil {
		h.logger.Channel().Error("Failed to marshal broadcast payload", "event", event, "error", err.Error())
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.observers {
		select {
		case client.Send <- message:
		default:
			h.logger.Channel().Warn("Observer channel full, message dropped", "channelId", client.ChannelID, "event", event)
		}
	}
}

// SendToChannel delivers an event to one channel only.
func (h *Hub) SendToChannel(channelID, event string, data any) {
	message, err := marshalEnvelope(event, data)
	if err != nil {
		h.logger.Channel().Error("Failed to marshal scoped payload", "event", event, "error", err.Error())
		return
	}

	h.mu.RLock()
	client, ok := h.clients[channelID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Channel().Debug("Scoped delivery to unknown channel skipped", "channelId", channelID, "event", event)
		return
	}

	select {
	case client.Send <- message:
	default:
		h.logger.Channel().Warn("Channel send buffer full, message dropped", "channelId", channelID, "event", event)
	}
}

// ObserverCount returns the number of connected observer consoles.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub) broadcastSnapshot() {
	h.snapshotMu.RLock()
	fn := h.snapshotFn
	h.snapshotMu.RUnlock()
	if fn == nil {
		return
	}

	h.mu.RLock()
	hasObservers := len(h.observers) > 0
	h.mu.RUnlock()
	if !hasObservers {
		return
	}

	h.BroadcastToObservers("sessions.snapshot", fn())
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
		delete(h.observers, client)
	}
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	return json.Marshal(events.OutboundEnvelope{Event: event, Data: data})
}
