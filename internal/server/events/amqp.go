package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/logging"
)

// AMQPPublisher publishes session events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  logging.Logger
}

// NewAMQPPublisher dials the broker and declares the session.terminated
// direct exchange. The exchange is durable and messages are persistent, so a
// client that reconnects after a broker restart still sees pending
// terminations in its bound queue.
func NewAMQPPublisher(url string, l logging.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		common.SessionTerminatedExchange,
		"direct",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare failed: %w", err)
	}

	return &AMQPPublisher{
		conn:    conn,
		channel: ch,
		logger:  l.With("module", "events"),
	}, nil
}

func (p *AMQPPublisher) SessionTerminated(ctx context.Context, ev SessionTerminated) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.channel.PublishWithContext(ctx,
		common.SessionTerminatedExchange,
		ev.UserID, // routing key selects the user's queue
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		return fmt.Errorf("amqp publish failed: %w", err)
	}

	p.logger.Info(ctx, "session termination published", "user_id", ev.UserID, "reason", ev.Reason)
	return nil
}

func (p *AMQPPublisher) Close() error {
	_ = p.channel.Close()
	return p.conn.Close()
}
