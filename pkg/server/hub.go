// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// changeEvent is the SSE payload published when a user record mutates.
type changeEvent struct {
	Action string `json:"action"`
}

// Hub fans user-record change events out to SSE subscribers. Each
// subscription is scoped to one record topic; events for other records are
// never delivered. Slow subscribers drop events rather than blocking the
// publisher; the client re-fetches the full record on every event, so drops
// only delay a refresh.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]string

	// heartbeatInterval is how often a comment line is written to detect
	// dead connections.
	heartbeatInterval time.Duration
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{
		subs:              make(map[chan []byte]string),
		heartbeatInterval: 30 * time.Second,
	}
}

// Publish delivers a change event to the subscribers of the given topic.
func (h *Hub) Publish(topic, action string) {
	payload, err := json.Marshal(changeEvent{Action: action})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub, subTopic := range h.subs {
		if subTopic != topic {
			continue
		}
		select {
		case sub <- payload:
		default:
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// subscribe registers a new subscriber channel for a topic.
func (h *Hub) subscribe(topic string) chan []byte {
	sub := make(chan []byte, 16)
	h.mu.Lock()
	h.subs[sub] = topic
	h.mu.Unlock()
	return sub
}

// unsubscribe removes a subscriber channel.
func (h *Hub) unsubscribe(sub chan []byte) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Stream streams the topic's change events to one subscriber until it
// disconnects. Authorization is the caller's responsibility.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.subscribe(topic)
	defer h.unsubscribe(sub)

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload := <-sub:
			if _, err := fmt.Fprintf(w, "event: users\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
