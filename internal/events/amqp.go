package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/MrJamesThe3rd/ledger/internal/resilience"
)

// AMQPSender publishes envelopes as persistent JSON messages on a durable
// direct exchange.
type AMQPSender struct {
	conn       *amqp091.Connection
	mu         sync.Mutex
	channel    *amqp091.Channel
	exchange   string
	routingKey string
	breaker    *gobreaker.CircuitBreaker
	retry      resilience.Config
}

func NewAMQPSender(url, exchange, routingKey string, retry resilience.Config) (*AMQPSender, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		amqp091.ExchangeDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()

		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPSender{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
		breaker:    resilience.NewCircuitBreaker("amqp-" + exchange),
		retry:      retry,
	}, nil
}

func (s *AMQPSender) Send(ctx context.Context, e Event) error {
	body, err := e.JSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return resilience.RetryWithBackoff(ctx, s.retry, func() error {
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.publish(ctx, e, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			return resilience.Permanent(err)
		}

		return err
	})
}

func (s *AMQPSender) publish(ctx context.Context, e Event, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.channel.PublishWithContext(
		ctx,
		s.exchange,
		s.routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     e.MessageID.String(),
			CorrelationId: e.CorrelationID,
			Type:          string(e.EventType),
			Timestamp:     e.Timestamp,
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		s.channel.Close()
	}

	if s.conn != nil {
		return s.conn.Close()
	}

	return nil
}
