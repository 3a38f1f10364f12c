package notify

import (
	"context"

	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// Publisher delivers a plain-text message to an outbound channel
type Publisher interface {
	Publish(ctx context.Context, message string) error
	// Name labels the publisher in logs and metrics
	Name() string
}

// LogPublisher writes messages to the log instead of sending them
type LogPublisher struct {
	logger *observability.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *observability.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Name implements Publisher
func (p *LogPublisher) Name() string {
	return "log"
}

// Publish implements Publisher
func (p *LogPublisher) Publish(_ context.Context, message string) error {
	p.logger.WithField("notification", message).Info("Notification published")
	return nil
}
