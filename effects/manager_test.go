package effects

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

type pending struct {
	ctx    context.Context
	prompt Prompt
	reply  chan Answer
}

// scriptedPresenter hands every prompt to the test and blocks until the test answers.
type scriptedPresenter struct {
	pending chan pending
}

func newScriptedPresenter() *scriptedPresenter {
	return &scriptedPresenter{pending: make(chan pending, 16)}
}

func (s *scriptedPresenter) Present(ctx context.Context, p Prompt) (Answer, error) {
	pd := pending{ctx: ctx, prompt: p, reply: make(chan Answer, 1)}

	select {
	case s.pending <- pd:
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}

	select {
	case a := <-pd.reply:
		return a, nil
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
}

// await returns the next live prompt for kind and step, skipping prompts of
// superseded flows.
func (s *scriptedPresenter) await(t *testing.T, kind Kind, step Step) pending {
	t.Helper()

	timeout := time.After(wait)
	for {
		select {
		case pd := <-s.pending:
			if pd.ctx.Err() != nil || pd.prompt.Kind != kind || pd.prompt.Step != step {
				continue
			}
			return pd
		case <-timeout:
			t.Fatalf("no prompt for %s/%s", kind, step)
			return pending{}
		}
	}
}

type logSink struct {
	mu    sync.Mutex
	lines []string
}

func (l *logSink) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logSink) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type harness struct {
	m       *Manager
	ui      *scriptedPresenter
	api     *actionAPI
	release func()
	logs    *logSink
}

func startHarness(t *testing.T, policy ResetPolicy, status int, opts ...SubmitterOption) *harness {
	t.Helper()

	api, srv := newActionAPI(t, status)
	hold := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(hold) }) }
	api.mu.Lock()
	api.hold = hold
	api.mu.Unlock()
	t.Cleanup(release)

	logs := &logSink{}
	ui := newScriptedPresenter()
	store := NewStateStore(1)
	snap := testSnapshot()
	store.SetPublic(snap.Players)
	store.SetPrivate(snap.PrivateSecrets, snap.PrivateCards)

	m := NewManager(
		WithPresenter(ui),
		WithSubmitter(NewHTTPSubmitter(srv.URL, "g-1", 1, opts...)),
		WithStateSource(store),
		WithResetPolicy(policy),
		WithLogger(logs.logf, logs.logf),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = m.Run(ctx) }()

	return &harness{m: m, ui: ui, api: api, release: release, logs: logs}
}

// startFree is a harness whose action API answers immediately.
func startFree(t *testing.T, opts ...SubmitterOption) *harness {
	t.Helper()

	h := startHarness(t, ResetAfterSubmit, http.StatusOK, opts...)
	h.release()
	return h
}

func (h *harness) post(t *testing.T) capturedPost {
	t.Helper()

	select {
	case p := <-h.api.seen:
		return p
	case <-time.After(wait):
		t.Fatal("no action POST")
		return capturedPost{}
	}
}

func (h *harness) eventuallyIdle(t *testing.T) {
	t.Helper()

	assert.Eventually(t, func() bool {
		return h.m.State().Phase() == PhaseIdle
	}, wait, 5*time.Millisecond)
}

func TestManager_ScenarioSelectAnyPlayer(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"selectAnyPlayer"}`))
	h.ui.await(t, KindSelectAnyPlayer, StepSelectPlayer).reply <- Answer{ID: 7}

	post := h.post(t)
	assert.Equal(t, "/game/g-1/select-any-player", post.Path)
	assert.Equal(t, map[string]any{
		"event":            "selectAnyPlayer",
		"playerId":         float64(1),
		"selectedPlayerId": float64(7),
	}, post.Body)

	h.eventuallyIdle(t)
	assert.Equal(t, 1, h.api.count())
}

func TestManager_ScenarioStealSet(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"stealSet"}`))

	pd := h.ui.await(t, KindStealSet, StepSelectPlayer)
	assert.NotContains(t, optionIDs(pd.prompt.Options), 1)
	pd.reply <- Answer{ID: 3}

	pd = h.ui.await(t, KindStealSet, StepSelectSet)
	assert.Equal(t, []int{202}, optionIDs(pd.prompt.Options))
	assert.Zero(t, h.api.count(), "no partial POST between steps")
	pd.reply <- Answer{ID: 202}

	post := h.post(t)
	assert.Equal(t, "/game/g-1/steal-set", post.Path)
	assert.Equal(t, float64(3), post.Body["stolenPlayerId"])
	assert.Equal(t, float64(202), post.Body["setId"])
	assert.Len(t, post.Body, 4)
}

func TestManager_ScenarioBackThenForward(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"andThenThereWasOneMore"}`))
	h.ui.await(t, KindAndThenThereWasOneMore, StepSelectPlayer).reply <- Answer{ID: 2}

	pd := h.ui.await(t, KindAndThenThereWasOneMore, StepSelectSecret)
	assert.True(t, pd.prompt.CanGoBack)
	assert.Equal(t, []int{200}, optionIDs(pd.prompt.Options))
	pd.reply <- Answer{Back: true}

	pd = h.ui.await(t, KindAndThenThereWasOneMore, StepSelectPlayer)
	state := h.m.State()
	assert.Nil(t, state.Selections.Player1)
	assert.Nil(t, state.Selections.Secret)
	assert.True(t, state.BackRequested)
	pd.reply <- Answer{ID: 2}

	h.ui.await(t, KindAndThenThereWasOneMore, StepSelectSecret).reply <- Answer{ID: 200}
	h.ui.await(t, KindAndThenThereWasOneMore, StepSelectPlayer2).reply <- Answer{ID: 5}

	post := h.post(t)
	assert.Equal(t, map[string]any{
		"event":            "andThenThereWasOneMore",
		"playerId":         float64(1),
		"selectedPlayerId": float64(2),
		"secretId":         float64(200),
		"stolenPlayerId":   float64(5),
	}, post.Body)

	h.eventuallyIdle(t)
	assert.Equal(t, 1, h.api.count())
}

func TestManager_ScenarioUnconfiguredEndpoint(t *testing.T) {
	endpoints := DefaultEndpoints()
	delete(endpoints, KindSelectDirection)
	h := startFree(t, WithEndpoints(endpoints))

	h.m.Notify([]byte(`{"event":"selectDirection"}`))
	h.ui.await(t, KindSelectDirection, StepSelectDirection).reply <- Answer{Direction: DirectionRight}

	h.eventuallyIdle(t)
	assert.Eventually(t, func() bool { return h.logs.contains("no endpoint configured") }, wait, 5*time.Millisecond)
	assert.Zero(t, h.api.count())
}

func TestManager_ScenarioReorderDiscard(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"delayTheMurderersEscape","payload":[{"id":1},{"id":2},{"id":3}]}`))

	pd := h.ui.await(t, KindDelayTheMurderersEscape, StepOrderDiscard)
	assert.True(t, pd.prompt.Ordered)
	assert.Equal(t, []int{1, 2, 3}, optionIDs(pd.prompt.Options))
	pd.reply <- Answer{IDs: []int{2, 3, 1}}

	post := h.post(t)
	assert.Equal(t, []any{float64(2), float64(3), float64(1)}, post.Body["cards"])
}

func TestManager_RevealOwnSecretHasNoBack(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"revealOwnSecret"}`))

	pd := h.ui.await(t, KindRevealOwnSecret, StepSelectSecret)
	assert.False(t, pd.prompt.CanGoBack)
	assert.Equal(t, []int{100}, optionIDs(pd.prompt.Options))

	// a widget that offers back anyway is asked again
	pd.reply <- Answer{Back: true}
	h.ui.await(t, KindRevealOwnSecret, StepSelectSecret).reply <- Answer{ID: 100}

	post := h.post(t)
	assert.Equal(t, float64(100), post.Body["secretId"])
}

func TestManager_AnswerOutsideCandidatesIsAskedAgain(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"stealSet"}`))
	h.ui.await(t, KindStealSet, StepSelectPlayer).reply <- Answer{ID: 1}

	pd := h.ui.await(t, KindStealSet, StepSelectPlayer)
	assert.Nil(t, h.m.State().Selections.Player1)
	assert.True(t, h.logs.contains("1 is not a candidate for selectPlayer"))
	pd.reply <- Answer{ID: 3}

	h.ui.await(t, KindStealSet, StepSelectSet).reply <- Answer{ID: 202}

	post := h.post(t)
	assert.Equal(t, float64(3), post.Body["stolenPlayerId"])
	h.eventuallyIdle(t)
	assert.Equal(t, 1, h.api.count())
}

func TestManager_ReorderOfOtherCardsIsAskedAgain(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"delayTheMurderersEscape","payload":[{"id":1},{"id":2},{"id":3}]}`))
	h.ui.await(t, KindDelayTheMurderersEscape, StepOrderDiscard).reply <- Answer{IDs: []int{9}}

	pd := h.ui.await(t, KindDelayTheMurderersEscape, StepOrderDiscard)
	assert.Zero(t, h.api.count())
	assert.Equal(t, PhaseAwaitingStep, h.m.State().Phase())
	pd.reply <- Answer{IDs: []int{3, 2, 1}}

	post := h.post(t)
	assert.Equal(t, []any{float64(3), float64(2), float64(1)}, post.Body["cards"])
}

func TestManager_StatePushRebuildsOpenPrompt(t *testing.T) {
	store := NewStateStore(1)
	ui := newScriptedPresenter()
	logs := &logSink{}
	m := NewManager(
		WithPresenter(ui),
		WithStateSource(store),
		WithSubmitter(submitterFunc(func(context.Context, Request) error { return nil })),
		WithLogger(logs.logf, logs.logf),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	route := Route(store, m)
	route([]byte(`{"event":"selectAnyPlayer"}`))

	first := ui.await(t, KindSelectAnyPlayer, StepSelectPlayer)
	assert.Empty(t, first.prompt.Options)

	route([]byte(`{"event":"publicState","payload":{"players":[{"id":1},{"id":7}]}}`))

	second := ui.await(t, KindSelectAnyPlayer, StepSelectPlayer)
	assert.Equal(t, []int{1, 7}, optionIDs(second.prompt.Options))
	assert.Error(t, first.ctx.Err(), "stale prompt is cancelled")
	assert.Equal(t, uint64(1), m.State().Generation)

	// an update that leaves the candidates alone does not interrupt the player
	route([]byte(`{"event":"privateState","payload":{"secrets":[],"cards":[{"id":40}]}}`))
	assert.Eventually(t, func() bool { return store.Snapshot().PrivateCards != nil }, wait, 5*time.Millisecond)
	assert.Never(t, func() bool { return second.ctx.Err() != nil }, 100*time.Millisecond, 10*time.Millisecond)

	second.reply <- Answer{ID: 7}
	assert.Eventually(t, func() bool { return m.State().Phase() == PhaseIdle }, wait, 5*time.Millisecond)
}

func TestManager_NewNotificationSupersedesFlow(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"andThenThereWasOneMore"}`))
	h.ui.await(t, KindAndThenThereWasOneMore, StepSelectPlayer).reply <- Answer{ID: 2}
	old := h.ui.await(t, KindAndThenThereWasOneMore, StepSelectSecret)

	h.m.Notify([]byte(`{"event":"selectAnyPlayer"}`))
	pd := h.ui.await(t, KindSelectAnyPlayer, StepSelectPlayer)

	assert.Error(t, old.ctx.Err(), "superseded prompt is cancelled")
	state := h.m.State()
	assert.Equal(t, KindSelectAnyPlayer, state.Kind)
	assert.Equal(t, Selections{}, state.Selections)

	pd.reply <- Answer{ID: 7}

	post := h.post(t)
	assert.Equal(t, "selectAnyPlayer", post.Body["event"])
	h.eventuallyIdle(t)
	assert.Equal(t, 1, h.api.count())
}

func TestManager_IgnoresUnknownAndMalformed(t *testing.T) {
	h := startFree(t)

	h.m.Notify([]byte(`{"event":"shuffleDeck"}`))
	h.m.Notify([]byte(`not json`))
	h.m.Notify([]byte(`{"payload":[1,2]}`))
	h.m.Dispatch(Notification{Event: "selectDirection"})

	h.ui.await(t, KindSelectDirection, StepSelectDirection)
	assert.Equal(t, uint64(1), h.m.State().Generation)
	assert.True(t, h.logs.contains(`unknown effect: "shuffleDeck"`))
	assert.True(t, h.logs.contains("missing event"))
	assert.Zero(t, h.api.count())
}

func TestManager_FailedSubmissionResets(t *testing.T) {
	h := startHarness(t, ResetAfterSubmit, http.StatusInternalServerError)
	h.release()

	h.m.Notify([]byte(`{"event":"selectOwnCard"}`))
	h.ui.await(t, KindSelectOwnCard, StepSelectCard).reply <- Answer{ID: 40}

	h.post(t)
	h.eventuallyIdle(t)
	assert.Eventually(t, func() bool { return h.logs.contains("unexpected status 500") }, wait, 5*time.Millisecond)
	assert.Equal(t, 1, h.api.count())
}

func TestManager_NotificationDuringPendingSubmit(t *testing.T) {
	for _, policy := range []ResetPolicy{ResetAfterSubmit, ResetBeforeSubmit} {
		t.Run(policy.String(), func(t *testing.T) {
			h := startHarness(t, policy, http.StatusOK)

			h.m.Notify([]byte(`{"event":"selectAnyPlayer"}`))
			h.ui.await(t, KindSelectAnyPlayer, StepSelectPlayer).reply <- Answer{ID: 7}
			h.post(t)

			if policy == ResetAfterSubmit {
				assert.Equal(t, PhaseSubmitting, h.m.State().Phase())
			} else {
				h.eventuallyIdle(t)
			}

			h.m.Notify([]byte(`{"event":"selectDirection"}`))
			pd := h.ui.await(t, KindSelectDirection, StepSelectDirection)

			// the first request finishes while the second flow is waiting
			h.release()
			assert.Eventually(t, func() bool {
				return h.logs.contains("SUBMIT: selectAnyPlayer accepted")
			}, wait, 5*time.Millisecond)
			assert.Eventually(t, func() bool {
				return h.logs.contains("Dropped effects.SubmitDone")
			}, wait, 5*time.Millisecond)

			state := h.m.State()
			assert.Equal(t, KindSelectDirection, state.Kind)
			assert.Equal(t, PhaseAwaitingStep, state.Phase())

			pd.reply <- Answer{Direction: DirectionLeft}
			post := h.post(t)
			assert.Equal(t, "left", post.Body["direction"])
			h.eventuallyIdle(t)
			assert.Equal(t, 2, h.api.count())
		})
	}
}

func TestManager_RunRequiresSubmitter(t *testing.T) {
	err := NewManager().Run(context.Background())
	assert.Error(t, err)
}

func TestManager_ObserverSeesEveryChange(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase

	ui := newScriptedPresenter()
	m := NewManager(
		WithPresenter(ui),
		WithSubmitter(submitterFunc(func(context.Context, Request) error { return nil })),
		WithObserver(func(s FlowState) {
			mu.Lock()
			defer mu.Unlock()
			phases = append(phases, s.Phase())
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Dispatch(Notification{Event: "selectDirection"})
	ui.await(t, KindSelectDirection, StepSelectDirection).reply <- Answer{Direction: DirectionRight}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) == 3
	}, wait, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseAwaitingStep, PhaseSubmitting, PhaseIdle}, phases)
}

type submitterFunc func(context.Context, Request) error

func (f submitterFunc) Submit(ctx context.Context, r Request) error {
	return f(ctx, r)
}
