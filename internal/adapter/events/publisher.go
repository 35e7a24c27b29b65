// internal/adapter/events/publisher.go

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civicpulse/internal/domain/rollup"
)

// Subjects published on the message bus
const (
	SubjectRollupUpserted      = "rollup.upserted"
	SubjectAggregationComplete = "aggregation.completed"
)

// Conn is the subset of *nats.Conn used for publishing
type Conn interface {
	Publish(subj string, data []byte) error
}

// RollupEvent is published after a rollup is written
type RollupEvent struct {
	Type   string                `json:"type"`
	Rollup rollup.LocalityRollup `json:"rollup"`
	Time   time.Time             `json:"time"`
}

// RunEvent is published when an aggregation run finishes
type RunEvent struct {
	Type    string            `json:"type"`
	Summary rollup.RunSummary `json:"summary"`
	Time    time.Time         `json:"time"`
}

// Publisher publishes aggregation events to NATS
type Publisher struct {
	conn Conn
	now  func() time.Time
}

// NewPublisher creates a new NATS-backed publisher
func NewPublisher(conn Conn) *Publisher {
	return &Publisher{
		conn: conn,
		now:  time.Now,
	}
}

// PublishRollup announces a written rollup
func (p *Publisher) PublishRollup(ctx context.Context, r rollup.LocalityRollup) error {
	return p.publish(ctx, SubjectRollupUpserted, RollupEvent{
		Type:   "rollup_upserted",
		Rollup: r,
		Time:   p.now(),
	})
}

// PublishRunSummary announces a finished run
func (p *Publisher) PublishRunSummary(ctx context.Context, s rollup.RunSummary) error {
	return p.publish(ctx, SubjectAggregationComplete, RunEvent{
		Type:    "aggregation_completed",
		Summary: s,
		Time:    p.now(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return nil
}
