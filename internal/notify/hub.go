// Package notify fans notification events out to connected clients and to
// the Telegram sink. With Redis configured, events published by any API
// process reach every hub.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"supportbot/backend/internal/config"

	"github.com/redis/go-redis/v9"
)

const eventBuffer = 256

// ErrHubStopped is returned by Publish once Run has returned.
var ErrHubStopped = errors.New("notification hub stopped")

// Hub owns the set of connected clients. All mutations of Clients happen on
// the Run goroutine.
type Hub struct {
	Clients map[int64]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	EventsCh     chan Event

	Sink  Client
	Redis *redis.Client

	done chan struct{}
	log  *slog.Logger
}

// NewHub creates a hub. rdb and sink may be nil.
func NewHub(rdb *redis.Client, sink Client) *Hub {
	return &Hub{
		Clients:      make(map[int64]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventsCh:     make(chan Event, eventBuffer),
		Sink:         sink,
		Redis:        rdb,
		done:         make(chan struct{}),
		log:          slog.Default().With("component", "notify"),
	}
}

// Publish hands an event to every hub. Delivery is best effort; an error
// here means the event is lost.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if h.Redis != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if err := h.Redis.Publish(ctx, config.NotifyChannel, payload).Err(); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		return nil
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.EventsCh <- ev:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a client, replacing any previous client of the same user.
func (h *Hub) Register(c Client) {
	select {
	case h.RegisterCh <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes a client if it is still the current one for its user.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Run is the dispatcher loop. It returns when ctx ends, after closing every
// client and the sink.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	if h.Sink != nil {
		h.Sink.Run()
	}
	if h.Redis != nil {
		go h.listen(ctx)
	}

	for {
		select {
		case c := <-h.RegisterCh:
			id := c.GetUserID()
			if old, ok := h.Clients[id]; ok && old != c {
				old.Close()
			}
			h.Clients[id] = c
			h.log.Debug("client registered", "user", id, "clients", len(h.Clients))

		case c := <-h.UnregisterCh:
			id := c.GetUserID()
			if cur, ok := h.Clients[id]; ok && cur == c {
				delete(h.Clients, id)
				c.Close()
				h.log.Debug("client unregistered", "user", id, "clients", len(h.Clients))
			}

		case ev := <-h.EventsCh:
			h.dispatch(ev)

		case <-ctx.Done():
			for id, c := range h.Clients {
				c.Close()
				delete(h.Clients, id)
			}
			if h.Sink != nil {
				h.Sink.Close()
			}
			return nil
		}
	}
}

func (h *Hub) dispatch(ev Event) {
	if h.Sink != nil {
		select {
		case h.Sink.GetSendChannel() <- ev:
		default:
			h.log.Warn("sink is backed up, dropping notification", "user", ev.UserID, "kind", ev.Kind)
		}
	}

	c, ok := h.Clients[ev.UserID]
	if !ok {
		return
	}
	select {
	case c.GetSendChannel() <- ev:
	default:
		// slow consumer; it can reconnect
		delete(h.Clients, ev.UserID)
		c.Close()
		h.log.Warn("dropping slow websocket client", "user", ev.UserID)
	}
}
