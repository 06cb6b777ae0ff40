package tryon

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tryon-web/internal/domain"
	"tryon-web/internal/usecase/mutation"
	"tryon-web/internal/usecase/slot"
	"tryon-web/internal/usecase/validation"

	"github.com/wb-go/wbf/zlog"
)

const publishTimeout = time.Second

// Session is one browser's flow: two slots and one submission lifecycle.
// Every exported method is safe for concurrent use.
type Session struct {
	id string

	mu       sync.Mutex
	person   *slot.Slot
	clothing *slot.Slot

	// unix nanoseconds, read without mu
	lastSeen atomic.Int64

	mutation    *mutation.Mutation
	unsubscribe func()

	client    tryOnClient
	publisher eventPublisher
	logger    *zlog.Zerolog
}

func NewSession(id string, policy validation.Policy, previews previewRepository, client tryOnClient, publisher eventPublisher, logger *zlog.Zerolog) *Session {
	s := &Session{
		id:        id,
		person:    slot.NewSlot(domain.SlotPerson, policy, previews, logger),
		clothing:  slot.NewSlot(domain.SlotClothing, policy, previews, logger),
		mutation:  mutation.NewMutation(logger),
		client:    client,
		publisher: publisher,
		logger:    logger,
	}
	s.touch(time.Now())
	s.unsubscribe = s.mutation.Subscribe(s.onTransition)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// SelectFile validates file into the given slot. A nil file clears it.
func (s *Session) SelectFile(ctx context.Context, kind domain.SlotKind, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.slotFor(kind)
	if err != nil {
		return err
	}
	if s.mutation.State().IsPending() {
		return ErrSubmissionPending
	}

	return target.Select(ctx, file)
}

func (s *Session) RemoveFile(ctx context.Context, kind domain.SlotKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.slotFor(kind)
	if err != nil {
		return err
	}
	if s.mutation.State().IsPending() {
		return ErrSubmissionPending
	}

	target.Remove(ctx)
	return nil
}

// DismissSlotError clears an inline validation message.
func (s *Session) DismissSlotError(ctx context.Context, kind domain.SlotKind) error {
	return s.RemoveFile(ctx, kind)
}

func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	return s.person.Ready() && s.clothing.Ready() && !s.mutation.State().IsPending()
}

// Submit starts the try-on request. It returns immediately; progress is
// observed through View.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutation.State().IsPending() {
		return ErrSubmissionPending
	}
	if !s.canSubmitLocked() {
		return ErrNotReady
	}

	person, clothing := s.person.File(), s.clothing.File()
	err := s.mutation.Mutate(ctx, func(ctx context.Context) (*domain.TryOnResult, error) {
		return s.client.TryOn(ctx, person, clothing)
	})
	if err != nil {
		return ErrSubmissionPending
	}

	s.logger.Info().
		Str("session_id", s.id).
		Str("person", person.Name).
		Str("clothing", clothing.Name).
		Msg("Try-on submitted")
	return nil
}

// DismissError returns a finished submission to Idle and keeps both files,
// so the user can submit again without re-uploading.
func (s *Session) DismissError(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutation.State().IsPending() {
		return ErrSubmissionPending
	}
	s.mutation.Reset()

	s.logger.Debug().Str("session_id", s.id).Msg("Submission error dismissed")
	return nil
}

// Reset clears both slots and abandons any running submission.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mutation.Reset()
	s.person.Remove(ctx)
	s.clothing.Remove(ctx)

	s.logger.Debug().Str("session_id", s.id).Msg("Session reset")
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SelectView(s.mutation.State(), s.person.Snapshot(), s.clothing.Snapshot(), s.canSubmitLocked())
}

// ResultImage decodes the image of a successful result.
func (s *Session) ResultImage() ([]byte, string, error) {
	state := s.mutation.State()
	if state.Status != domain.StatusSuccess || !state.Result.HasImage() {
		return nil, "", ErrNoResult
	}

	data, err := decodeImage(state.Result.ResultImage)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	return data, validation.DetectImageType(data), nil
}

// OwnsPreview reports whether ref is the current preview of one of the slots.
func (s *Session) OwnsPreview(ref domain.PreviewRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ref != "" && (s.person.Preview() == ref || s.clothing.Preview() == ref)
}

// Wait blocks until a running submission has returned.
func (s *Session) Wait() {
	s.mutation.Wait()
}

func (s *Session) Close(ctx context.Context) {
	s.unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mutation.Reset()
	s.person.Remove(ctx)
	s.clothing.Remove(ctx)
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) slotFor(kind domain.SlotKind) (*slot.Slot, error) {
	switch kind {
	case domain.SlotPerson:
		return s.person, nil
	case domain.SlotClothing:
		return s.clothing, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, kind)
	}
}

func (s *Session) onTransition(state mutation.State) {
	event := domain.TryOnEvent{
		SessionID: s.id,
		Status:    state.Status,
		At:        time.Now(),
	}
	switch {
	case state.Err != nil:
		event.Message = state.Err.Error()
	case state.Result != nil:
		event.Message = state.Result.Message
	}

	if state.Status == domain.StatusFailed {
		s.logger.Warn().Str("session_id", s.id).Err(state.Err).Msg("Try-on failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("session_id", s.id).Str("status", string(event.Status)).Msg("Failed to publish try-on event")
	}
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
}
