package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"contextinsight/internal/model"
)

const (
	headerSessionID = "session_id"
	headerEventType = "event_type"
)

var errEventNacked = errors.New("broker did not confirm insight event")

// InsightEventPublisher sends insight change events to a durable queue and
// waits for the broker to confirm each one.
type InsightEventPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewInsightEventPublisher(conn *amqp.Connection, queueName string) *InsightEventPublisher {
	return &InsightEventPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *InsightEventPublisher) Publish(ctx context.Context, event model.InsightEvent) error {
	msg, err := newEventPublishing(event)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms failed: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare event queue failed: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queueName, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish insight event failed: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for event confirm failed: %w", err)
	}
	if !acked {
		return fmt.Errorf("%w: %s for session %s", errEventNacked, event.Type, event.SessionID)
	}
	return nil
}

// newEventPublishing carries the event type and session in headers so
// consumers can filter without decoding the body.
func newEventPublishing(event model.InsightEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal insight event failed: %w", err)
	}
	return amqp.Publishing{
		Headers: amqp.Table{
			headerSessionID: event.SessionID,
			headerEventType: event.Type,
		},
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		AppId:        connectionName,
		Body:         body,
	}, nil
}
