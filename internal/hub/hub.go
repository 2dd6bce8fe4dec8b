package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/client"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// StatusSource provides the snapshot sent to newly connected clients
type StatusSource interface {
	Statuses() []models.SportStatus
}

// StatusFunc adapts a function to StatusSource
type StatusFunc func() []models.SportStatus

// Statuses calls f
func (f StatusFunc) Statuses() []models.SportStatus { return f() }

// Hub maintains the set of active feed clients and fans load events out to them
type Hub struct {
	// Registered clients
	clients   map[*client.Client]bool
	clientsMu sync.RWMutex

	// Inbound load events from the catalog
	broadcast chan models.LoadEvent

	// Register requests from clients
	register chan *client.Client

	// Unregister requests from clients
	unregister chan *client.Client

	// Closed once Run returns
	done chan struct{}

	statuses StatusSource
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// Counters
	totalConnections int64
	totalMessages    int64
	countersMu       sync.Mutex
}

// NewHub creates a new Hub instance. m may be nil.
func NewHub(statuses StatusSource, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client.Client]bool),
		broadcast:  make(chan models.LoadEvent, 256),
		register:   make(chan *client.Client),
		unregister: make(chan *client.Client),
		done:       make(chan struct{}),
		statuses:   statuses,
		logger:     logger,
		metrics:    m,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Info("hub started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-ticker.C:
			stats := h.GetStats()
			h.logger.Debug("hub stats",
				zap.Any("active_clients", stats["active_clients"]),
				zap.Any("total_connections", stats["total_connections"]),
				zap.Any("total_messages", stats["total_messages"]))
		}
	}
}

// Register adds a client to the hub. It is a no-op once the hub has stopped.
func (h *Hub) Register(c *client.Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *client.Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a load event for matching clients without blocking
func (h *Hub) Broadcast(event models.LoadEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast buffer full, dropping load event",
			zap.String("sport", string(event.Sport)),
			zap.String("state", string(event.State)))
	}
}

// Observe matches catalog.Observer
func (h *Hub) Observe(event models.LoadEvent) {
	h.Broadcast(event)
}

// registerClient adds a client and sends it the current catalog snapshot
func (h *Hub) registerClient(c *client.Client) {
	h.clientsMu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.countersMu.Lock()
	h.totalConnections++
	h.countersMu.Unlock()
	h.setClientGauge(count)

	if h.statuses != nil {
		c.TrySend(models.ServerMessage{
			Type:      models.MessageTypeSnapshot,
			Payload:   h.statuses.Statuses(),
			Timestamp: time.Now(),
		})
	}
	h.logger.Info("client connected", zap.String("client_id", c.ID), zap.Int("total", count))
}

// unregisterClient removes a client from the active clients map
func (h *Hub) unregisterClient(c *client.Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.Close()
	}
	count := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		h.setClientGauge(count)
		h.logger.Info("client disconnected", zap.String("client_id", c.ID), zap.Int("total", count))
	}
}

// broadcastEvent sends an event to every client subscribed to its sport
func (h *Hub) broadcastEvent(event models.LoadEvent) {
	h.clientsMu.RLock()
	clients := make([]*client.Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := models.ServerMessage{
		Type:      models.MessageTypeLoadState,
		Payload:   event,
		Timestamp: time.Now(),
	}

	sent := 0
	for _, c := range clients {
		if !c.MatchesSport(event.Sport) {
			continue
		}

		if c.TrySend(message) {
			sent++
			continue
		}

		// Client buffer full - they're too slow, disconnect them
		h.logger.Warn("client buffer full, disconnecting", zap.String("client_id", c.ID))
		h.unregisterClient(c)
	}

	if sent > 0 {
		h.countersMu.Lock()
		h.totalMessages++
		h.countersMu.Unlock()
	}
}

// GetStats returns hub counters
func (h *Hub) GetStats() map[string]interface{} {
	h.countersMu.Lock()
	defer h.countersMu.Unlock()

	return map[string]interface{}{
		"active_clients":     h.GetClientCount(),
		"total_connections":  h.totalConnections,
		"total_messages":     h.totalMessages,
		"broadcast_capacity": cap(h.broadcast),
		"broadcast_usage":    len(h.broadcast),
	}
}

// GetClientCount returns the number of active clients
func (h *Hub) GetClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info("shutting down hub", zap.Int("active_clients", len(h.clients)))

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	h.setClientGauge(0)
}

func (h *Hub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.SetWebSocketClients(n)
	}
}
