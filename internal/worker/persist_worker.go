package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"zerotrust-rag/internal/model"
	"zerotrust-rag/internal/repository"
)

// PersistWorker drains one durable queue into MySQL. Two instances run in
// the portal: one for audit events, one for session history messages.
type PersistWorker struct {
	conn      *amqp.Connection
	queueName string
	handle    func(body []byte) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuditPersistWorker(conn *amqp.Connection, repo *repository.AuditRepository, queueName string) *PersistWorker {
	return &PersistWorker{
		conn:      conn,
		queueName: queueName,
		handle: func(body []byte) error {
			var event model.AuditEvent
			if err := json.Unmarshal(body, &event); err != nil {
				return fmt.Errorf("decode audit event failed: %w", err)
			}
			return repo.Append(&event)
		},
	}
}

func NewMessagePersistWorker(conn *amqp.Connection, repo *repository.MessageRepository, queueName string) *PersistWorker {
	return &PersistWorker{
		conn:      conn,
		queueName: queueName,
		handle: func(body []byte) error {
			var msg model.Message
			if err := json.Unmarshal(body, &msg); err != nil {
				return fmt.Errorf("decode message failed: %w", err)
			}
			return repo.Create(&msg)
		},
	}
}

func (w *PersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				if err := w.handle(d.Body); err != nil {
					log.Printf("worker %s persist failed: %v", w.queueName, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *PersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
