package telemetry

import (
	"context"
	"log"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// DeliveryEmitter publishes delivery audit events to the event exchange.
type DeliveryEmitter struct {
	publisher   Publisher
	service     string
	environment string
}

type DeliveryEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	Environment   string         `json:"environment"`
	UserID        *int64         `json:"user_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

func NewDeliveryEmitter(publisher Publisher, service, environment string) *DeliveryEmitter {
	return &DeliveryEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// Emit publishes a delivery event. Failures are logged, never surfaced:
// audit is best-effort and must not affect delivery.
func (e *DeliveryEmitter) Emit(ctx context.Context, eventType string, userID *int64, payload map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := DeliveryEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, "delivery."+eventType, envelope); err != nil {
		log.Printf("delivery event publish failed: %v", err)
	}
}
