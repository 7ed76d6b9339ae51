package gateway

import (
	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
)

// Hub owns the set of connected clients and routes traffic between them
// and the event bus. All client-set mutation happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	// incoming carries command envelopes read from clients.
	incoming chan events.Envelope
	// outbound carries event envelopes delivered by the bus subscription.
	outbound chan events.Envelope
	done     chan struct{}

	bus    events.Bus
	logger *zap.Logger
}

// NewHub creates a Hub over the given bus.
//
// Precondition: bus and logger must be non-nil.
func NewHub(bus events.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan events.Envelope),
		outbound:   make(chan events.Envelope, sendBuffer),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger,
	}
}

// Run is the hub's event loop. Blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Closing send stops the client's writePump.
				close(client.send)
			}

		case env := <-h.incoming:
			if err := h.bus.Publish(env); err != nil {
				h.logger.Error("publishing client command",
					zap.String("kind", string(env.Kind)),
					zap.Error(err),
				)
			}

		case env := <-h.outbound:
			for client := range h.clients {
				select {
				case client.send <- env:
				default:
					// Slow client; drop rather than stall the hub.
				}
			}

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// attach subscribes the hub to outbound bus traffic. Command envelopes
// are not echoed back to clients.
func (h *Hub) attach() (func(), error) {
	return h.bus.Subscribe(func(env events.Envelope) {
		if env.Kind.IsCommand() {
			return
		}
		select {
		case h.outbound <- env:
		case <-h.done:
		}
	})
}

// stop terminates the Run loop and disconnects all clients.
func (h *Hub) stop() {
	close(h.done)
}
