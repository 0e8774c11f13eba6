// Package realtime fans change notifications and market ticks out to
// connected dashboard clients over Server-Sent Events. Clients react to a
// notification by refetching through the REST API, mirroring the
// subscribe-then-refetch model the watchers use internally.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"tradedeck/internal/metrics"
)

// Broker handles SSE clients and broadcasting
type Broker struct {
	log        zerolog.Logger
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	done       chan struct{}
}

// NewBroker creates an SSE broker
func NewBroker(log zerolog.Logger) *Broker {
	return &Broker{
		log:        log.With().Str("component", "sse-broker").Logger(),
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 1000),
		done:       make(chan struct{}),
	}
}

// Run starts the broker loop until the context is cancelled
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range b.clients {
				close(client)
				delete(b.clients, client)
			}
			metrics.SSEClients.Set(0)
			// Unblocks handlers trying to register or unregister after
			// the loop has exited
			close(b.done)
			return

		case client := <-b.register:
			b.clients[client] = true
			metrics.SSEClients.Set(float64(len(b.clients)))
			b.log.Debug().Int("total", len(b.clients)).Msg("sse client connected")

		case client := <-b.unregister:
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			metrics.SSEClients.Set(float64(len(b.clients)))
			b.log.Debug().Int("total", len(b.clients)).Msg("sse client disconnected")

		case msg := <-b.broadcast:
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
		}
	}
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan []byte, 10)
	select {
	case b.register <- clientChan:
	case <-b.done:
		return
	}

	notify := r.Context().Done()

	for {
		select {
		case <-notify:
			select {
			case b.unregister <- clientChan:
			case <-b.done:
			}
			return
		case msg, open := <-clientChan:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast sends an event with payload to all connected clients
func (b *Broker) Broadcast(event string, payload interface{}) {
	data := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}
	msg, err := json.Marshal(data)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast message")
		return
	}

	select {
	case b.broadcast <- msg:
	default:
		b.log.Warn().Str("event", event).Msg("broadcast buffer full, dropping message")
	}
}
