package tryon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tryon-web/internal/domain"
	"tryon-web/internal/usecase/validation"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// TryOnUsecase owns the per-browser sessions and the shared collaborators
// they use.
type TryOnUsecase struct {
	policy    validation.Policy
	previews  previewRepository
	client    tryOnClient
	publisher eventPublisher
	logger    *zlog.Zerolog

	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewTryOnUsecase(policy validation.Policy, previews previewRepository, client tryOnClient, publisher eventPublisher, ttl time.Duration, logger *zlog.Zerolog) *TryOnUsecase {
	return &TryOnUsecase{
		policy:    policy,
		previews:  previews,
		client:    client,
		publisher: publisher,
		logger:    logger,
		ttl:       ttl,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the session for id, creating a fresh one when id is
// empty or unknown. created reports whether a new session was made.
func (u *TryOnUsecase) Session(id string) (sess *Session, created bool) {
	now := u.now()

	u.mu.Lock()
	defer u.mu.Unlock()

	if id != "" {
		if existing, ok := u.sessions[id]; ok {
			existing.touch(now)
			return existing, false
		}
	}

	newID := uuid.New().String()
	sess = NewSession(newID, u.policy, u.previews, u.client, u.publisher, u.logger)
	sess.touch(now)
	u.sessions[newID] = sess

	u.logger.Debug().Str("session_id", newID).Msg("Session created")
	return sess, true
}

// Lookup returns an existing session without creating one.
func (u *TryOnUsecase) Lookup(id string) (*Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	sess, ok := u.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(u.now())
	return sess, nil
}

// Preview loads a preview that belongs to sess.
func (u *TryOnUsecase) Preview(ctx context.Context, sess *Session, ref domain.PreviewRef) (*domain.Preview, []byte, error) {
	if !sess.OwnsPreview(ref) {
		return nil, nil, ErrPreviewForbidden
	}

	meta, data, err := u.previews.Get(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load preview: %w", err)
	}
	return meta, data, nil
}

// BackendHealth probes the generation service.
func (u *TryOnUsecase) BackendHealth(ctx context.Context) (string, error) {
	return u.client.Health(ctx)
}

func (u *TryOnUsecase) Policy() validation.Policy {
	return u.policy
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (u *TryOnUsecase) Sweep(ctx context.Context) int {
	cutoff := u.now().Add(-u.ttl)

	u.mu.Lock()
	var expired []*Session
	for id, sess := range u.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(u.sessions, id)
		}
	}
	u.mu.Unlock()

	for _, sess := range expired {
		sess.Close(ctx)
	}

	if len(expired) > 0 {
		u.logger.Info().Int("expired", len(expired)).Msg("Expired idle sessions")
	}
	return len(expired)
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (u *TryOnUsecase) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.Sweep(ctx)
		}
	}
}

func (u *TryOnUsecase) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.sessions)
}

// Close releases every session's previews and waits, until ctx is done, for
// abandoned submissions to return.
func (u *TryOnUsecase) Close(ctx context.Context) {
	u.mu.Lock()
	sessions := u.sessions
	u.sessions = make(map[string]*Session)
	u.mu.Unlock()

	for _, sess := range sessions {
		sess.Close(ctx)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sess := range sessions {
			sess.Wait()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		u.logger.Warn().Int("sessions", len(sessions)).Msg("Stopped waiting for running submissions")
	}
}
