// Package pubsub publishes scan events to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/pipelinewatch/internal/notify"
)

// Publisher sends each scan event as a JSON message.
type Publisher struct {
	topic *pubsub.Topic
}

// New wraps topic. The caller owns the client that created it.
func New(topic *pubsub.Topic) (*Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Publisher{topic: topic}, nil
}

// Notify marshals event to JSON and waits for the server to accept it.
func (p *Publisher) Notify(ctx context.Context, event notify.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"pipeline": event.Pipeline,
			"scan_id":  event.ScanID,
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Pipeline, err)
	}
	return nil
}

// Close flushes pending messages and stops the topic's background goroutines.
func (p *Publisher) Close() {
	p.topic.Stop()
}
