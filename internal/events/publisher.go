// Package events publishes one outcome event per processed lead row to a
// RabbitMQ topic exchange so downstream systems (CRM sync, reporting) can
// follow a run without reading the table.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// OutcomeEventType names the event and its schema version.
const OutcomeEventType = "lead.dispatch.outcome.v1"

const producer = "lead-dispatch"

// Meta is the envelope header shared by all events.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope wraps an event payload.
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

// Outcome is the payload of a lead.dispatch.outcome.v1 event.
type Outcome struct {
	RunID      string    `json:"run_id"`
	Row        int       `json:"row"`
	Phone      string    `json:"phone"`
	Outcome    string    `json:"outcome"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	Attempts   int       `json:"attempts"`
	WriteError string    `json:"write_error,omitempty"`
	At         time.Time `json:"at"`
}

// NewOutcomeEnvelope builds the envelope for one row result. The run ID is
// used as correlation ID.
func NewOutcomeEnvelope(r domain.RowResult) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: r.RunID,
			Producer:      producer,
			Time:          time.Now().UTC(),
			Type:          OutcomeEventType,
		},
		Data: Outcome{
			RunID:      r.RunID,
			Row:        r.Ordinal,
			Phone:      r.Phone,
			Outcome:    string(r.Outcome.Kind),
			Status:     r.Outcome.StatusValue(),
			Detail:     r.Outcome.Detail,
			Attempts:   r.Attempts,
			WriteError: r.WriteError,
			At:         r.At,
		},
	}
}

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher is a dispatch.Observer that publishes outcome events.
type Publisher struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string

	mu sync.Mutex
	ch Channel
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange, routingKey string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	p := NewPublisher(ch, exchange, routingKey)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, exchange, routingKey string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, routingKey: routingKey}
}

// Observe publishes the row result as a persistent JSON message.
func (p *Publisher) Observe(ctx context.Context, r domain.RowResult) error {
	return p.Publish(ctx, NewOutcomeEnvelope(r))
}

// Publish sends env to the configured exchange and routing key.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		AppId:         producer,
		Timestamp:     env.Meta.Time,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", env.Meta.Type, err)
	}
	logger.Debug("event published", "type", env.Meta.Type, "id", env.Meta.ID, "exchange", p.exchange)
	return nil
}

// Close closes the channel and, when the publisher owns it, the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Fallback is used when no broker is configured. It drops every event.
type Fallback struct{}

func (Fallback) Observe(ctx context.Context, r domain.RowResult) error {
	logger.Debug("events disabled: outcome not published", "row", r.Ordinal)
	return nil
}

func (Fallback) Close() error { return nil }
