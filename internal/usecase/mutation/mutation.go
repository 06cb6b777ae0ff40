package mutation

import (
	"context"
	"fmt"
	"sync"

	"tryon-web/internal/domain"

	"github.com/wb-go/wbf/zlog"
)

// Func performs one submission.
type Func func(ctx context.Context) (*domain.TryOnResult, error)

// State is a copy of the wrapper state at one point in time.
type State struct {
	Status domain.MutationStatus
	Result *domain.TryOnResult
	Err    error
}

func (s State) IsPending() bool {
	return s.Status == domain.StatusPending
}

func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Mutation tracks a single in-flight submission. Reset abandons a running
// call; its outcome is dropped when it arrives.
//
// Observers see transitions in the order they were applied: notifyMu is held
// from the state change until every observer has returned.
type Mutation struct {
	notifyMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64

	observers    map[uint64]func(State)
	nextObserver uint64

	wg     sync.WaitGroup
	logger *zlog.Zerolog
}

func NewMutation(logger *zlog.Zerolog) *Mutation {
	return &Mutation{
		state:     State{Status: domain.StatusIdle},
		observers: make(map[uint64]func(State)),
		logger:    logger,
	}
}

// Mutate starts fn on its own goroutine. The call keeps ctx values but not
// its cancellation, so it outlives the request that triggered it.
func (m *Mutation) Mutate(ctx context.Context, fn Func) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.state.Status == domain.StatusPending {
		m.mu.Unlock()
		return ErrAlreadyPending
	}
	m.generation++
	gen := m.generation
	m.state = State{Status: domain.StatusPending}
	snapshot, observers := m.state, m.observerList()
	m.mu.Unlock()

	notify(observers, snapshot)

	m.wg.Add(1)
	go m.run(context.WithoutCancel(ctx), gen, fn)
	return nil
}

func (m *Mutation) run(ctx context.Context, gen uint64, fn Func) {
	defer m.wg.Done()

	result, err := m.call(ctx, fn)

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Uint64("generation", gen).Msg("Discarding abandoned submission result")
		return
	}
	if err != nil {
		m.state = State{Status: domain.StatusFailed, Err: err}
	} else {
		m.state = State{Status: domain.StatusSuccess, Result: result}
	}
	snapshot, observers := m.state, m.observerList()
	m.mu.Unlock()

	notify(observers, snapshot)
}

func (m *Mutation) call(ctx context.Context, fn Func) (result *domain.TryOnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Recovered from panic in submission")
			result = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return fn(ctx)
}

// Reset returns to Idle from any state.
func (m *Mutation) Reset() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.generation++
	m.state = State{Status: domain.StatusIdle}
	snapshot, observers := m.state, m.observerList()
	m.mu.Unlock()

	notify(observers, snapshot)
}

func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every transition and returns a function that
// removes it. fn must not call Mutate or Reset.
func (m *Mutation) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// Wait blocks until every started call has returned.
func (m *Mutation) Wait() {
	m.wg.Wait()
}

func (m *Mutation) observerList() []func(State) {
	list := make([]func(State), 0, len(m.observers))
	for _, fn := range m.observers {
		list = append(list, fn)
	}
	return list
}

func notify(observers []func(State), s State) {
	for _, fn := range observers {
		fn(s)
	}
}
