package ws

import (
	"encoding/json"
	"log/slog"
)

// Notifier turns domain events into hub messages of the form
// {"event": ..., "data": ...}.
type Notifier struct {
	hub    *Hub
	logger *slog.Logger
}

func NewNotifier(hub *Hub, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{hub: hub, logger: logger}
}

func (n *Notifier) NotifyUser(userID, event string, data any) {
	if userID == "" {
		return
	}
	n.publish(UserChannel(userID), event, data)
}

func (n *Notifier) NotifyAdmins(event string, data any) {
	n.publish(AdminKYCChannel, event, data)
}

func (n *Notifier) publish(channel, event string, data any) {
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		n.logger.Warn("websocket event encode failed", "event", event, "err", err)
		return
	}
	n.hub.Publish(channel, payload)
}
