/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Logf writes one formatted log line.
type Logf func(format string, args ...any)

func discard(string, ...any) {}

// Manager owns the single active flow. Every input is funneled through Run,
// so the flow state is only ever written from one goroutine.
type Manager struct {
	presenter Presenter
	submitter Submitter
	source    StateSource
	policy    ResetPolicy
	infof     Logf
	warnf     Logf
	observer  func(FlowState)

	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	state FlowState

	cancelPrompt context.CancelFunc
	shown        Prompt
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithPresenter(p Presenter) ManagerOption {
	return func(m *Manager) { m.presenter = p }
}

func WithSubmitter(s Submitter) ManagerOption {
	return func(m *Manager) { m.submitter = s }
}

func WithStateSource(s StateSource) ManagerOption {
	return func(m *Manager) { m.source = s }
}

func WithResetPolicy(p ResetPolicy) ManagerOption {
	return func(m *Manager) { m.policy = p }
}

// WithLogger sets the loggers for routine flow progress and for problems.
func WithLogger(info, warn Logf) ManagerOption {
	return func(m *Manager) {
		if info != nil {
			m.infof = info
		}
		if warn != nil {
			m.warnf = warn
		}
	}
}

// WithObserver registers fn to be called from the run loop after every state change.
func WithObserver(fn func(FlowState)) ManagerOption {
	return func(m *Manager) { m.observer = fn }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		presenter: PresenterFunc(func(ctx context.Context, _ Prompt) (Answer, error) {
			<-ctx.Done()
			return Answer{}, ctx.Err()
		}),
		source: &StateStore{},
		infof:  discard,
		warnf:  discard,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns a copy of the current flow.
func (m *Manager) State() FlowState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// ParseNotification decodes a push message of the form {"event": ..., "payload": ...}.
func ParseNotification(raw []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if n.Event == "" {
		return Notification{}, fmt.Errorf("%w: missing event", ErrMalformedNotification)
	}
	return n, nil
}

// Notify parses raw and dispatches it. Malformed messages are logged and dropped.
func (m *Manager) Notify(raw []byte) {
	n, err := ParseNotification(raw)
	if err != nil {
		m.warnf("WARN: Ignoring push message: %v", err)
		return
	}
	m.Dispatch(n)
}

// Dispatch queues ev for the run loop. It returns without effect once Run has exited.
func (m *Manager) Dispatch(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// SnapshotChanged tells the run loop the state source was updated. Call it
// after the update so an open prompt is rebuilt from the new snapshot.
func (m *Manager) SnapshotChanged() {
	if m.State().Phase() != PhaseAwaitingStep {
		return
	}
	m.Dispatch(StateChanged{})
}

// Run processes events until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.submitter == nil {
		return errors.New("effects: manager has no submitter")
	}

	defer close(m.done)
	defer m.stopPrompt()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.apply(ctx, ev)
		}
	}
}

func (m *Manager) apply(ctx context.Context, ev Event) {
	prev := m.State()

	switch ev := ev.(type) {
	case StateChanged:
		m.refresh(ctx, prev)
		return
	case Selection:
		if active(prev, ev.Generation, ev.Step) == nil {
			if err := CheckAnswer(BuildPrompt(prev, m.source.Snapshot()), ev.Answer); err != nil {
				m.warnf("WARN: Flow %d: %v", prev.Generation, err)
				m.present(ctx, prev)
				return
			}
		}
	}

	next, req, err := Reduce(prev, ev, m.policy)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownEffect):
			m.warnf("WARN: Ignoring notification: %v", err)
		case errors.Is(err, ErrNoBackStep), errors.Is(err, ErrInvalidAnswer):
			m.warnf("WARN: Flow %d: %v", prev.Generation, err)
			// the widget already returned, so ask again
			m.present(ctx, prev)
		default:
			m.infof("FLOW: Dropped %T: %v", ev, err)
		}
		return
	}

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	if next.Generation != prev.Generation {
		m.infof("FLOW: Started %s (flow %d)", next.Kind, next.Generation)
	}

	if next.Phase() != PhaseAwaitingStep {
		m.stopPrompt()
	} else if next.Generation != prev.Generation || next.Step != prev.Step {
		m.infof("FLOW: %s asking for %s", next.Kind, next.Step)
		m.present(ctx, next)
	}

	if req != nil {
		m.infof("FLOW: %s resolved (flow %d)", req.Kind, req.Generation)
		go m.submit(ctx, *req)
	}

	if m.observer != nil {
		m.observer(next)
	}
}

// refresh presents the open step again when a new snapshot changed its candidates.
func (m *Manager) refresh(ctx context.Context, state FlowState) {
	if state.Phase() != PhaseAwaitingStep {
		return
	}

	if p := BuildPrompt(state, m.source.Snapshot()); slices.Equal(p.Options, m.shown.Options) {
		return
	}

	m.infof("FLOW: %s candidates for %s changed", state.Kind, state.Step)
	m.present(ctx, state)
}

func (m *Manager) stopPrompt() {
	if m.cancelPrompt != nil {
		m.cancelPrompt()
		m.cancelPrompt = nil
	}
}

func (m *Manager) present(ctx context.Context, state FlowState) {
	m.stopPrompt()

	pctx, cancel := context.WithCancel(ctx)
	m.cancelPrompt = cancel

	prompt := BuildPrompt(state, m.source.Snapshot())
	m.shown = prompt
	gen, step := state.Generation, state.Step

	go func() {
		ans, err := m.presenter.Present(pctx, prompt)
		if err != nil {
			if pctx.Err() == nil {
				m.warnf("WARN: Prompt for %s/%s failed: %v", prompt.Kind, prompt.Step, err)
			}
			return
		}

		if ans.Back {
			m.Dispatch(BackRequest{Generation: gen, Step: step})
			return
		}
		m.Dispatch(Selection{Generation: gen, Step: step, Answer: ans})
	}()
}

func (m *Manager) submit(ctx context.Context, req Request) {
	err := m.submitter.Submit(ctx, req)

	switch {
	case err == nil:
		m.infof("SUBMIT: %s accepted (flow %d)", req.Kind, req.Generation)
	case errors.Is(err, ErrEndpointNotConfigured):
		m.warnf("WARN: %v; abandoning flow %d", err, req.Generation)
	default:
		m.warnf("ERROR: %v", err)
	}

	m.Dispatch(SubmitDone{Generation: req.Generation, Err: err})
}
