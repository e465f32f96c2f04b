package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	prefetch     = 10
	consumerTag  = "fundraising-service"
	drainTimeout = 30 * time.Second

	// MaxDeliveryAttempts caps how often a failing delivery is handled before
	// it is parked on the dead-letter queue.
	MaxDeliveryAttempts = 5

	attemptsHeader    = "x-fundraising-attempts"
	routingKeyHeader  = "x-fundraising-routing-key"
	deadLetterSuffix  = ".dead"
	deadLetterXSuffix = ".dlx"
)

// Handler processes one delivery body. Returning true acks the delivery;
// false retries it until MaxDeliveryAttempts, then dead-letters it.
type Handler func(body []byte) bool

// Consumer reads a durable queue bound to a topic exchange and dispatches
// each delivery to the handler registered for its routing key.
type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
	done   chan struct{}
}

func NewConsumer(amqpURL string, logger *slog.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, logger: logger}, nil
}

// Consume declares the exchange and queue, binds every routing key in
// handlers and starts dispatching in the background.
func (c *Consumer) Consume(exchange, queueName string, handlers map[string]Handler) error {
	if len(handlers) == 0 {
		return errors.New("rabbitmq: no handlers registered")
	}
	if c.done != nil {
		return errors.New("rabbitmq: consumer already started")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	dlx := exchange + deadLetterXSuffix
	if err := c.ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlx, err)
	}
	dead, err := c.ch.QueueDeclare(queueName+deadLetterSuffix, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName+deadLetterSuffix, err)
	}
	if err := c.ch.QueueBind(dead.Name, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", dead.Name, dlx, err)
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{"x-dead-letter-exchange": dlx})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	for routingKey, handler := range handlers {
		if handler == nil {
			return fmt.Errorf("rabbitmq: nil handler for %s", routingKey)
		}
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", routingKey, q.Name, err)
		}
	}

	deliveries, err := c.ch.Consume(q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	c.done = make(chan struct{})
	go c.dispatch(q.Name, deliveries, handlers)
	return nil
}

func (c *Consumer) dispatch(queue string, deliveries <-chan amqp.Delivery, handlers map[string]Handler) {
	defer close(c.done)

	for d := range deliveries {
		routingKey := routingKeyOf(d)
		handler, ok := handlers[routingKey]
		switch {
		case !ok:
			c.logger.Warn("no handler for routing key; dropping delivery", "routing_key", routingKey, "queue", queue)
			_ = d.Ack(false)
		case handler(d.Body):
			_ = d.Ack(false)
		default:
			c.retryOrDeadLetter(queue, routingKey, d)
		}
	}
	c.logger.Info("rabbitmq delivery channel closed", "queue", queue)
}

// retryOrDeadLetter puts a failed delivery back on the queue with its attempt
// count raised, or parks it once MaxDeliveryAttempts is reached.
func (c *Consumer) retryOrDeadLetter(queue, routingKey string, d amqp.Delivery) {
	attempt := deliveryAttempt(d)
	if attempt >= MaxDeliveryAttempts {
		c.logger.Error("handler failed on final attempt; dead-lettering delivery", "routing_key", routingKey, "attempt", attempt, "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.ch.PublishWithContext(ctx, "", queue, false, false, retryPublishing(d, routingKey, attempt))
	if err != nil {
		c.logger.Warn("failed to republish delivery; requeuing", "routing_key", routingKey, "attempt", attempt, "error", err)
		_ = d.Nack(false, true)
		return
	}
	c.logger.Warn("handler failed; retrying delivery", "routing_key", routingKey, "attempt", attempt)
	_ = d.Ack(false)
}

// deliveryAttempt is the 1-based attempt number of d. A broker redelivery
// counts as an attempt of its own.
func deliveryAttempt(d amqp.Delivery) int {
	done := 0
	switch v := d.Headers[attemptsHeader].(type) {
	case int32:
		done = int(v)
	case int64:
		done = int(v)
	case int:
		done = v
	}
	if d.Redelivered {
		done++
	}
	return done + 1
}

// routingKeyOf returns the key the delivery was first published with;
// retries travel through the default exchange under the queue's name.
func routingKeyOf(d amqp.Delivery) string {
	if key, ok := d.Headers[routingKeyHeader].(string); ok && key != "" {
		return key
	}
	return d.RoutingKey
}

func retryPublishing(d amqp.Delivery, routingKey string, attempt int) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempt)
	headers[routingKeyHeader] = routingKey

	return amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Body:         d.Body,
	}
}

// Close stops new deliveries, lets the in-flight handler finish and then
// closes the channel and connection.
func (c *Consumer) Close() {
	if c.done != nil {
		if err := c.ch.Cancel(consumerTag, false); err != nil {
			c.logger.Warn("failed to cancel rabbitmq consumer", "error", err)
		}
		select {
		case <-c.done:
		case <-time.After(drainTimeout):
			c.logger.Warn("timed out waiting for in-flight delivery", "timeout", drainTimeout)
		}
	}
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
