package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher delivers one serialized notification to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// BindingKey routes every notification type into the mail queue.
const BindingKey = "notification.#"

var (
	// ErrNotConfirmed is returned when the broker nacks a publish.
	ErrNotConfirmed = errors.New("notify: broker did not confirm message")
	// ErrUnroutable is returned when a mandatory publish matched no queue.
	ErrUnroutable = errors.New("notify: message was not routed to any queue")
)

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange bound to a durable queue. The channel runs in confirm mode and
// Publish returns only after the broker has taken responsibility for the
// message.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	returns  chan amqp.Return
	exchange string
	log      zerolog.Logger

	mu sync.Mutex
}

func NewAMQPPublisher(url, exchange, queue string, log zerolog.Logger) (*AMQPPublisher, error) {
	log = log.With().Str("component", "amqp").Str("exchange", exchange).Str("queue", queue).Logger()

	conn, err := amqp.Dial(url)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to declare exchange")
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to declare queue")
		return nil, err
	}

	if err := ch.QueueBind(queue, BindingKey, exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to bind queue")
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to enable publisher confirms")
		return nil, err
	}

	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	log.Info().Msg("RabbitMQ publisher initialized")
	return &AMQPPublisher{conn: conn, channel: ch, returns: returns, exchange: exchange, log: log}, nil
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm blocks until the broker acks or nacks the message. The broker
// sends basic.return before the ack of an unroutable mandatory message, so a
// pending return is visible by the time the ack arrives.
func awaitConfirm(ctx context.Context, c confirmation, returns <-chan amqp.Return) error {
	acked, err := c.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrNotConfirmed
	}
	select {
	case ret, ok := <-returns:
		if ok {
			return fmt.Errorf("%w: %s (%d %s)", ErrUnroutable, ret.RoutingKey, ret.ReplyCode, ret.ReplyText)
		}
	default:
	}
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dc, err := p.channel.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,
		routingKey,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish message")
		return err
	}
	if err := awaitConfirm(ctx, dc, p.returns); err != nil {
		p.log.Error().Err(err).Str("routing_key", routingKey).Msg("message not confirmed")
		return err
	}
	p.log.Debug().Str("routing_key", routingKey).Msg("message confirmed")
	return nil
}

func (p *AMQPPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		firstErr = p.channel.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.log.Info().Msg("RabbitMQ connection closed")
	return firstErr
}
