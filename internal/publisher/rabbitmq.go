package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"podcastai/internal/config"
	"podcastai/internal/domain"
)

const (
	ActionJobState       = "job_state"
	ActionPodcastCreated = "podcast_created"
)

// RabbitMQ publishes job transitions and finished podcasts to a durable
// direct exchange.
type RabbitMQ struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	now        func() time.Time
	logger     *slog.Logger
}

func NewRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// declareTopology sets up a durable direct exchange with one durable queue
// bound on the configured routing key. Declarations are idempotent.
func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, durable, autoDelete, exclusive, noWait, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

// Message is the envelope of every published event. Exactly one of Job and
// Podcast is set, depending on Action.
type Message struct {
	Action    string           `json:"action"`
	Job       *domain.JobEvent `json:"job,omitempty"`
	Podcast   *domain.Podcast  `json:"podcast,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

func (r *RabbitMQ) PublishJobEvent(ctx context.Context, event domain.JobEvent) error {
	if err := r.publish(ctx, Message{Action: ActionJobState, Job: &event}); err != nil {
		return err
	}
	r.logger.Debug("published job event", "job_id", event.JobID, "state", event.State)
	return nil
}

func (r *RabbitMQ) PublishPodcast(ctx context.Context, podcast *domain.Podcast) error {
	if err := r.publish(ctx, Message{Action: ActionPodcastCreated, Podcast: podcast}); err != nil {
		return err
	}
	r.logger.Debug("published podcast", "podcast_id", podcast.ID, "job_id", podcast.JobID)
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, msg Message) error {
	msg.Timestamp = r.now().UTC()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         msg.Action,
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
