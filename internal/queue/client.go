package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	exchangeSuffix = ".events"
	enrichSuffix   = ".enrich"

	enrichRoutingKey = "message.enrich"

	publishTimeout = 5 * time.Second
)

// Client owns the RabbitMQ connection and topology: one durable topic
// exchange plus the durable enrichment queue bound to it.
type Client struct {
	conn     *amqp.Connection
	exchange string
	queue    string

	mu        sync.Mutex
	publishCh *amqp.Channel
}

func NewClient(url, prefix string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	c := &Client{
		conn:     conn,
		exchange: prefix + exchangeSuffix,
		queue:    prefix + enrichSuffix,
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(c.queue, enrichRoutingKey, c.exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	log.Info().Str("exchange", c.exchange).Str("queue", c.queue).Msg("rabbitmq topology ready")
	return c, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.publishCh != nil {
		_ = c.publishCh.Close()
		c.publishCh = nil
	}
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishCh != nil && !c.publishCh.IsClosed() {
		return c.publishCh, nil
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	c.publishCh = ch
	return ch, nil
}

// EnqueueEnrich publishes an enrichment job as a persistent message.
func (c *Client) EnqueueEnrich(ctx context.Context, job EnrichJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal enrich job: %w", err)
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchange, enrichRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish enrich job: %w", err)
	}
	return nil
}

// HandlerFunc processes one job. Returning retry=true requeues the job with
// an incremented attempt counter; the consumer gives up past maxAttempts.
type HandlerFunc func(ctx context.Context, job EnrichJob) (retry bool)

// Consume runs the enrichment consumer until ctx is cancelled. Transient
// downstream failures requeue with exponential backoff, bounded by
// maxAttempts; the already-committed message row is never re-created.
func (c *Client) Consume(ctx context.Context, maxAttempts int, handler HandlerFunc) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(8, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	log.Info().Str("queue", c.queue).Msg("enrichment consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, d, maxAttempts, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp.Delivery, maxAttempts int, handler HandlerFunc) {
	var job EnrichJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error().Err(err).Msg("undecodable enrich job, dropping")
		_ = d.Nack(false, false)
		return
	}

	retry := handler(ctx, job)
	if !retry {
		_ = d.Ack(false)
		return
	}

	_ = d.Ack(false)
	if job.Attempt+1 >= maxAttempts {
		log.Error().
			Str("messageId", job.MessageID).
			Int("attempts", job.Attempt+1).
			Msg("enrich job exhausted retries, giving up")
		return
	}

	job.Attempt++
	backoff := time.Duration(1<<job.Attempt) * time.Second
	log.Warn().
		Str("messageId", job.MessageID).
		Int("attempt", job.Attempt).
		Dur("backoff", backoff).
		Msg("requeueing enrich job")

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if err := c.EnqueueEnrich(context.Background(), job); err != nil {
			log.Error().Err(err).Str("messageId", job.MessageID).Msg("failed to requeue enrich job")
		}
	}()
}
