package worker

import (
	"context"
	"sync"
	"testing"

	"tryon-web/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TryOnEvent
	closed bool
	block  chan struct{}
	panics bool
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.TryOnEvent) error {
	if p.block != nil {
		<-p.block
	}
	if p.panics {
		panic("publisher exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func newLogger() *zlog.Zerolog {
	zlog.Init()
	return &zlog.Logger
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, 2, 16, newLogger())
	d.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Publish(context.Background(), domain.TryOnEvent{SessionID: "s", Status: domain.StatusPending}))
	}
	require.NoError(t, d.Close())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.events, 10)
	assert.True(t, pub.closed)
}

func TestDispatcherQueueFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	d := NewDispatcher(pub, 1, 1, newLogger())

	require.NoError(t, d.Publish(context.Background(), domain.TryOnEvent{SessionID: "a"}))
	assert.ErrorIs(t, d.Publish(context.Background(), domain.TryOnEvent{SessionID: "b"}), ErrQueueFull)

	d.Start()
	close(pub.block)
	require.NoError(t, d.Close())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingPublisher{}, 1, 4, newLogger())
	d.Start()
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.ErrorIs(t, d.Publish(context.Background(), domain.TryOnEvent{}), ErrStopped)
}

func TestDispatcherSurvivesFailures(t *testing.T) {
	pub := &recordingPublisher{panics: true}
	d := NewDispatcher(pub, 1, 4, newLogger())
	d.Start()

	require.NoError(t, d.Publish(context.Background(), domain.TryOnEvent{SessionID: "x"}))
	require.NoError(t, d.Close())
	assert.True(t, pub.closed)
}
