package broker

import (
	"context"

	"tryon-web/internal/domain"
)

// Publisher delivers try-on lifecycle events. Failures are reported to the
// caller, which only logs them.
type Publisher interface {
	Publish(ctx context.Context, event domain.TryOnEvent) error
	Close() error
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.TryOnEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
