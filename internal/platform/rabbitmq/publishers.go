package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"zerotrust-rag/internal/model"
)

// AccessRequestMessage is the break-glass notification body. Plain fields,
// no schema versioning; the reviewer tooling on the other side reads it as-is.
type AccessRequestMessage struct {
	RequestID   string    `json:"request_id"`
	Username    string    `json:"username"`
	EmployeeID  string    `json:"employee_id"`
	Query       string    `json:"query"`
	RequestedAt time.Time `json:"requested_at"`
}

// AccessRequestPublisher sends break-glass notifications to the fixed
// access-request queue.
type AccessRequestPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewAccessRequestPublisher(conn *amqp.Connection, queueName string) *AccessRequestPublisher {
	return &AccessRequestPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *AccessRequestPublisher) Publish(ctx context.Context, msg AccessRequestMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal access request payload failed: %w", err)
	}
	return publishJSON(ctx, p.conn, p.queueName, payload)
}

// AuditPublisher enqueues append-only audit events for the persist worker.
type AuditPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewAuditPublisher(conn *amqp.Connection, queueName string) *AuditPublisher {
	return &AuditPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *AuditPublisher) Publish(ctx context.Context, event model.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload failed: %w", err)
	}
	return publishJSON(ctx, p.conn, p.queueName, payload)
}

// MessagePublisher enqueues session history messages for the persist worker.
type MessagePublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewMessagePublisher(conn *amqp.Connection, queueName string) *MessagePublisher {
	return &MessagePublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *MessagePublisher) Publish(ctx context.Context, msg model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message payload failed: %w", err)
	}
	return publishJSON(ctx, p.conn, p.queueName, payload)
}
