// Package websocket routes analysis progress events to live subscribers.
// The Hub keys subscriber sets by file id; delivery is fan-out per
// subject with per-subscriber failure isolation.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains per-file subscriber sets and broadcasts events to them
type Hub struct {
	mu       sync.RWMutex
	subjects map[string]map[*Client]bool
	logger   *slog.Logger
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subjects: make(map[string]map[*Client]bool),
		logger:   logger.With(slog.String("component", "websocket.hub")),
	}
}

// Subscribe registers a client under a file id and acknowledges the
// connection to that client only. Idempotent per client.
func (h *Hub) Subscribe(fileID string, client *Client) {
	h.mu.Lock()
	set, ok := h.subjects[fileID]
	if !ok {
		set = make(map[*Client]bool)
		h.subjects[fileID] = set
	}
	already := set[client]
	set[client] = true
	count := len(set)
	h.mu.Unlock()

	if !already {
		metrics().subscriptions.Inc()
		metrics().activeSubscribers.Inc()
	}

	h.logger.Info("subscriber registered",
		slog.String("file_id", fileID),
		slog.String("client_id", client.id),
		slog.Int("subject_subscribers", count))

	h.SendTo(client, ConnectionEstablished(fileID))
}

// Unsubscribe removes a client from a file id's set. Removing the last
// subscriber deletes the subject entry. Safe to call repeatedly.
func (h *Hub) Unsubscribe(fileID string, client *Client) {
	h.mu.Lock()
	set, ok := h.subjects[fileID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if !set[client] {
		h.mu.Unlock()
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.subjects, fileID)
	}
	count := len(set)
	h.mu.Unlock()

	metrics().activeSubscribers.Dec()

	h.logger.Info("subscriber removed",
		slog.String("file_id", fileID),
		slog.String("client_id", client.id),
		slog.Int("subject_subscribers", count))
}

// Send delivers an event to every subscriber of fileID. No subscribers
// is a silent no-op. A subscriber whose send buffer is full is dropped
// from the set as part of this delivery attempt; remaining subscribers
// still receive the event.
func (h *Hub) Send(fileID string, event Event) {
	data, err := json.Marshal(event.stamp())
	if err != nil {
		h.logger.Error("failed to marshal event",
			slog.String("file_id", fileID),
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	set, ok := h.subjects[fileID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, client := range clients {
		if client.enqueue(data) {
			metrics().eventsDelivered.Inc()
		} else {
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		metrics().deliveryFailures.Inc()
		h.logger.Warn("subscriber send buffer full, dropping subscriber",
			slog.String("file_id", fileID),
			slog.String("client_id", client.id))
		h.dropClient(fileID, client)
	}
}

// SendTo delivers an event to exactly one client, bypassing subject
// routing. Used for acknowledgements and ping replies.
func (h *Hub) SendTo(client *Client, event Event) {
	data, err := json.Marshal(event.stamp())
	if err != nil {
		h.logger.Error("failed to marshal direct event",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
		return
	}

	if client.enqueue(data) {
		metrics().eventsDelivered.Inc()
		return
	}
	metrics().deliveryFailures.Inc()
	h.logger.Warn("direct send failed, client closed or buffer full",
		slog.String("client_id", client.id))
}

// SubscriberCount returns the number of live subscribers for a file id
func (h *Hub) SubscriberCount(fileID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subjects[fileID])
}

// SubjectCount returns the number of subjects with at least one subscriber
func (h *Hub) SubjectCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subjects)
}

// Close disconnects every subscriber and clears the registry. Called
// during process shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for fileID, set := range h.subjects {
		for client := range set {
			client.closeSend()
			metrics().activeSubscribers.Dec()
		}
		delete(h.subjects, fileID)
	}
	h.logger.InfoContext(context.Background(), "hub closed")
}

// dropClient removes a client after a failed delivery, closing its send
// channel so its write pump terminates.
func (h *Hub) dropClient(fileID string, client *Client) {
	h.mu.Lock()
	set, ok := h.subjects[fileID]
	if !ok || !set[client] {
		h.mu.Unlock()
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.subjects, fileID)
	}
	h.mu.Unlock()

	client.closeSend()
	metrics().activeSubscribers.Dec()
}
