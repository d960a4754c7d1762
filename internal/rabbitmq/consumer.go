package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
)

const (
	routingKeyMessageStored = "message.stored"
	routingKeyNoticeCreated = "notice.created"
)

// EnqueueService is the subset of the queue manager the consumer feeds.
type EnqueueService interface {
	EnqueueMessage(ctx context.Context, userID, messageID int64) error
	EnqueueSystem(ctx context.Context, userID int64, input service.NoticeInput) (models.SystemNotice, error)
}

// Consumer feeds broker-published chat events into user inboxes.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	svc   EnqueueService
}

// NewConsumer connects to the broker and binds the consumer queue to the
// chat event exchange.
func NewConsumer(amqpURL, exchange, queueName string, svc EnqueueService) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	queue, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	for _, key := range []string{routingKeyMessageStored, routingKeyNoticeCreated} {
		if err := ch.QueueBind(queue.Name, key, exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	return &Consumer{conn: conn, ch: ch, queue: queue.Name, svc: svc}, nil
}

// Start consumes deliveries until ctx is cancelled or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Printf("rabbitmq consumer channel closed")
					return
				}
				c.handle(ctx, delivery)
			}
		}
	}()

	log.Printf("rabbitmq consumer started queue=%s", c.queue)
	return nil
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	err := c.dispatch(ctx, delivery)
	if err == nil {
		_ = delivery.Ack(false)
		return
	}

	observability.IncAMQPConsumeError()
	if errors.Is(err, repositories.ErrStorageUnavailable) {
		// Transient: requeue so the producer's event is not lost.
		log.Printf("rabbitmq consume requeue key=%s: %v", delivery.RoutingKey, err)
		_ = delivery.Nack(false, true)
		return
	}
	log.Printf("rabbitmq consume drop key=%s: %v", delivery.RoutingKey, err)
	_ = delivery.Nack(false, false)
}

func (c *Consumer) dispatch(ctx context.Context, delivery amqp.Delivery) error {
	switch delivery.RoutingKey {
	case routingKeyMessageStored:
		var event struct {
			UserID    int64 `json:"user_id"`
			MessageID int64 `json:"message_id"`
		}
		if err := json.Unmarshal(delivery.Body, &event); err != nil {
			return err
		}
		if event.UserID <= 0 || event.MessageID <= 0 {
			return errors.New("message.stored event with invalid ids")
		}
		return c.svc.EnqueueMessage(ctx, event.UserID, event.MessageID)
	case routingKeyNoticeCreated:
		var event struct {
			UserID   int64           `json:"user_id"`
			Kind     string          `json:"kind"`
			Content  string          `json:"content"`
			Metadata models.Metadata `json:"metadata"`
		}
		if err := json.Unmarshal(delivery.Body, &event); err != nil {
			return err
		}
		if event.UserID <= 0 {
			return errors.New("notice.created event with invalid user id")
		}
		_, err := c.svc.EnqueueSystem(ctx, event.UserID, service.NoticeInput{
			Kind:     event.Kind,
			Content:  event.Content,
			Metadata: event.Metadata,
		})
		return err
	default:
		return errors.New("unknown routing key " + delivery.RoutingKey)
	}
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
