package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishTurn publishes a completed-turn event for observability consumers.
func (p *Publisher) PublishTurn(ctx context.Context, event TurnEvent) error {
	return p.publish(ctx, SubjectTurnEvent, event)
}

// PublishAudit publishes an audit event.
func (p *Publisher) PublishAudit(ctx context.Context, event AuditEvent) error {
	return p.publish(ctx, SubjectAuditEvent, event)
}

// PublishPrune requests an out-of-schedule retention sweep.
func (p *Publisher) PublishPrune(ctx context.Context, req MaintenanceRequest) error {
	return p.publish(ctx, SubjectMaintenancePrune, req)
}

// PublishRebuild requests an out-of-schedule index rebuild.
func (p *Publisher) PublishRebuild(ctx context.Context, req MaintenanceRequest) error {
	return p.publish(ctx, SubjectMaintenanceRebuild, req)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
