package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/agora-market/agora/internal/infra/events"
)

// EarningsHub streams earnings and completion events to dashboard clients
// over Server-Sent Events, fed by the in-process broadcaster. The header
// counter subscribes here instead of polling the store.
type EarningsHub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]chan sseEvent
}

type sseEvent struct {
	name string
	data any
}

// NewEarningsHub wires a hub to the broadcaster topics it relays.
func NewEarningsHub(bus *events.Broadcaster) *EarningsHub {
	h := &EarningsHub{clients: make(map[int]chan sseEvent)}
	bus.Subscribe(events.TopicEarningsUpdated, func(payload any) {
		h.broadcast(sseEvent{name: "earnings", data: payload})
	})
	bus.Subscribe(events.TopicTaskCompleted, func(payload any) {
		h.broadcast(sseEvent{name: "task_completed", data: payload})
	})
	return h
}

// HandleSSE serves one client connection until it disconnects.
func (h *EarningsHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.register()
	defer h.unregister(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			raw, err := json.Marshal(ev.data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, raw)
			flusher.Flush()
		}
	}
}

func (h *EarningsHub) register() chan sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan sseEvent, 8)
	h.clients[h.nextID] = ch
	return ch
}

func (h *EarningsHub) unregister(ch chan sseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if c == ch {
			delete(h.clients, id)
			return
		}
	}
}

// broadcast drops events for slow clients rather than blocking the
// publisher.
func (h *EarningsHub) broadcast(ev sseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}
