package notifier

import (
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RabbitMQNotifier publishes events to a direct exchange, one routing key
// per event kind, generalized from the teacher's message_broaker.RabbitMQ
// (which bound a single queue/exchange/routingKey triple) into a four-topic
// fan-out sharing one connection and channel.
type RabbitMQNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

const (
	routingKeyJobCompleted       = "job.completed"
	routingKeyJobRetry           = "job.retry"
	routingKeyMaxRetriesExceeded = "job.max_retries_exceeded"
	routingKeyJobFailed          = "job.failed"
)

// NewRabbitMQNotifier dials url, declares a direct exchange, and binds a
// durable queue per event kind so consumers can subscribe selectively.
func NewRabbitMQNotifier(url, exchange string, log zerolog.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	for _, key := range []string{routingKeyJobCompleted, routingKeyJobRetry, routingKeyMaxRetriesExceeded, routingKeyJobFailed} {
		queueName := "jobcore." + key
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
		if err := ch.QueueBind(queueName, key, exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	return &RabbitMQNotifier{conn: conn, channel: ch, exchange: exchange, log: log.With().Str("component", "notifier").Logger()}, nil
}

func (n *RabbitMQNotifier) publish(routingKey string, kind string, payload any) {
	body, err := json.Marshal(eventEnvelope{Kind: kind, EmittedAt: time.Now(), Payload: payload})
	if err != nil {
		n.log.Warn().Err(err).Str("kind", kind).Msg("notifier: marshal event failed")
		return
	}

	err = n.channel.Publish(n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("kind", kind).Msg("notifier: publish failed, dropping event")
	}
}

func (n *RabbitMQNotifier) NotifyJobCompleted(e JobCompleted) {
	n.publish(routingKeyJobCompleted, "job_completed", e)
}

func (n *RabbitMQNotifier) NotifyJobRetry(e JobRetry) {
	n.publish(routingKeyJobRetry, "job_retry", e)
}

func (n *RabbitMQNotifier) NotifyMaxRetriesExceeded(e MaxRetriesExceeded) {
	n.publish(routingKeyMaxRetriesExceeded, "max_retries_exceeded", e)
}

func (n *RabbitMQNotifier) NotifyJobFailed(e JobFailed) {
	n.publish(routingKeyJobFailed, "job_failed", e)
}

func (n *RabbitMQNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		_ = n.conn.Close()
		return err
	}
	return n.conn.Close()
}
