package messaging

import (
	"encoding/json"
	"log/slog"
)

// EventPublisher fans engine telemetry out over NATS. Delivery is
// best-effort: a failed publish is logged and dropped, never surfaced
// to the simulation.
type EventPublisher struct {
	server *NatsServer
}

func NewEventPublisher(server *NatsServer) *EventPublisher {
	return &EventPublisher{server: server}
}

func (p *EventPublisher) Emit(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("marshalling event", "subject", subject, "error", err)
		return
	}
	if err := p.server.Publish(subject, data); err != nil {
		slog.Warn("publishing event", "subject", subject, "error", err)
	}
}
