package notify

import (
	"context"
	"encoding/json"

	"supportbot/backend/internal/config"
)

// listen forwards events from the Redis channel into the hub until ctx ends.
func (h *Hub) listen(ctx context.Context) {
	sub := h.Redis.Subscribe(ctx, config.NotifyChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn("bad event on notify channel", "err", err)
				continue
			}
			select {
			case h.EventsCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
