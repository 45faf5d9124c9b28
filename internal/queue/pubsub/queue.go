// Package pubsub implements the task queue over Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// taskAttribute names the message attribute carrying the task identifier so
// the worker pool can discard messages routed from unrelated producers.
const taskAttribute = "task"

// Config identifies the Pub/Sub topic and subscription.
type Config struct {
	ProjectID    string
	TopicID      string
	Subscription string
}

// Queue provides durable at-least-once task delivery over Pub/Sub.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	logger *zap.Logger
}

// New creates a Pub/Sub client and resolves the topic and subscription.
// It authenticates using Application Default Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		closeClient(client, logger)
		return nil, fmt.Errorf("check pubsub topic %q: %w", cfg.TopicID, err)
	}
	if !ok {
		closeClient(client, logger)
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	var sub *pubsub.Subscription
	if cfg.Subscription != "" {
		sub = client.Subscription(cfg.Subscription)
	}

	return &Queue{
		client: client,
		topic:  topic,
		sub:    sub,
		logger: logger,
	}, nil
}

// Publish sends the task payload to the topic and waits for the server ack,
// which is what makes the enqueue durable.
func (q *Queue) Publish(ctx context.Context, task reviews.TaskPayload) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{taskAttribute: reviews.TaskName},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// Receive consumes tasks from the subscription until the context finishes.
// A handler error nacks the message, deferring to the backend's redelivery
// policy; idempotent ingestion absorbs the resulting duplicates.
func (q *Queue) Receive(ctx context.Context, handler func(context.Context, reviews.TaskPayload) error) error {
	if q.sub == nil {
		return fmt.Errorf("pubsub subscription is not configured")
	}
	err := q.sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		if name := msg.Attributes[taskAttribute]; name != "" && name != reviews.TaskName {
			q.logger.Warn("discarding unrecognized task", zap.String("task", name))
			msg.Ack()
			return
		}
		var task reviews.TaskPayload
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			q.logger.Error("malformed task payload", zap.Error(err))
			msg.Ack()
			return
		}
		if err := handler(msgCtx, task); err != nil {
			q.logger.Error("task handler failed", zap.String("task_id", task.TaskID), zap.Error(err))
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

// Close stops the topic's publisher and closes the client connection.
func (q *Queue) Close() error {
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

func closeClient(client *pubsub.Client, logger *zap.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("close pubsub client", zap.Error(err))
	}
}
