// Package mqtt defines the publish side contract between the orchestrator and
// the transport carrying frames to vehicles.
package mqtt

import (
	"context"

	"github.com/kilianp07/mtrr/core/model"
)

// Publisher sends frames to the fleet.
type Publisher interface {
	// Publish sends a frame on topic.
	Publish(ctx context.Context, topic string, f model.Frame) error
	// PublishRetained sends a frame the broker keeps for late subscribers.
	PublishRetained(ctx context.Context, topic string, f model.Frame) error
	// Unpublish clears the retained message on topic.
	Unpublish(ctx context.Context, topic string) error
}
