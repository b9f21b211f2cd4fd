/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ResetPolicy decides when a submitted flow returns to idle.
type ResetPolicy int

const (
	// ResetAfterSubmit keeps the flow in the submitting phase until the
	// request for that flow has finished, successfully or not.
	ResetAfterSubmit ResetPolicy = iota
	// ResetBeforeSubmit clears the flow as soon as its request is built.
	ResetBeforeSubmit
)

func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(s) {
	case "after", "":
		return ResetAfterSubmit, nil
	case "before":
		return ResetBeforeSubmit, nil
	}
	return ResetAfterSubmit, fmt.Errorf("invalid reset policy %q (must be before or after)", s)
}

func (p ResetPolicy) String() string {
	if p == ResetBeforeSubmit {
		return "before"
	}
	return "after"
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// Notification is a server-pushed effect request.
type Notification struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Selection carries a widget answer for a given flow generation and step.
type Selection struct {
	Generation uint64
	Step       Step
	Answer     Answer
}

// BackRequest asks to rewind the flow one step.
type BackRequest struct {
	Generation uint64
	Step       Step
}

// StateChanged reports that the snapshot behind the open prompt was updated.
type StateChanged struct{}

// SubmitDone reports that the request built for Generation has finished.
type SubmitDone struct {
	Generation uint64
	Err        error
}

func (Notification) isEvent() {}
func (Selection) isEvent()    {}
func (BackRequest) isEvent()  {}
func (SubmitDone) isEvent()   {}
func (StateChanged) isEvent() {}

// Request is the resolved action for one flow.
type Request struct {
	Kind       Kind
	Generation uint64
	Fields     map[string]any
}

// Reduce applies ev to state. It returns the new state, the request to send
// when the flow just completed, and an error describing why ev was ignored.
// An ignored event always leaves state unchanged.
func Reduce(state FlowState, ev Event, policy ResetPolicy) (FlowState, *Request, error) {
	switch ev := ev.(type) {
	case Notification:
		return start(state, ev)
	case Selection:
		return selectAnswer(state, ev, policy)
	case BackRequest:
		return back(state, ev)
	case SubmitDone:
		if state.Phase() != PhaseSubmitting || ev.Generation != state.Generation {
			return state, nil, ErrStaleEvent
		}
		return state.idle(), nil, nil
	case StateChanged:
		// candidates are derived at presentation time, the flow itself is unchanged
		return state, nil, nil
	}
	return state, nil, fmt.Errorf("unsupported event %T", ev)
}

func start(state FlowState, n Notification) (FlowState, *Request, error) {
	kind, ok := ParseKind(n.Event)
	if !ok {
		return state, nil, fmt.Errorf("%w: %q", ErrUnknownEffect, n.Event)
	}

	next := state.idle()
	next.Generation++
	next.Kind = kind
	next.Step = InitialStep(kind)
	if len(n.Payload) > 0 {
		next.Payload = slices.Clone(n.Payload)
	}

	return next, nil, nil
}

func active(state FlowState, gen uint64, step Step) error {
	if state.Phase() != PhaseAwaitingStep || gen != state.Generation || step != state.Step {
		return ErrStaleEvent
	}
	return nil
}

func selectAnswer(state FlowState, s Selection, policy ResetPolicy) (FlowState, *Request, error) {
	if err := active(state, s.Generation, s.Step); err != nil {
		return state, nil, err
	}

	if s.Step == StepOrderDiscard {
		if err := checkOrder(s.Answer.IDs, PayloadCards(state.Payload)); err != nil {
			return state, nil, err
		}
	}

	sel, err := record(state.Selections, s.Step, s.Answer)
	if err != nil {
		return state, nil, err
	}

	def := table[state.Kind]
	next := state
	next.Selections = sel
	next.BackRequested = false

	step, submit := def.advance(sel)
	if !submit {
		next.Step = step
		return next, nil, nil
	}

	req := &Request{
		Kind:       state.Kind,
		Generation: state.Generation,
		Fields:     def.fields(sel),
	}

	if policy == ResetBeforeSubmit {
		return next.idle(), req, nil
	}

	next.Submitting = true
	return next, req, nil
}

// record stores ans into the selection field that belongs to step.
func record(sel Selections, step Step, ans Answer) (Selections, error) {
	id := ans.ID

	switch step {
	case StepSelectPlayer:
		sel.Player1 = &id
	case StepSelectPlayer2:
		sel.Player2 = &id
	case StepSelectSecret:
		sel.Secret = &id
	case StepSelectSet:
		sel.Set = &id
	case StepSelectCard:
		sel.Card = &id
	case StepOrderDiscard:
		sel.OrderedCards = append([]int{}, ans.IDs...)
	case StepSelectDirection:
		if !ans.Direction.valid() {
			return sel, fmt.Errorf("%w: direction %q", ErrInvalidAnswer, ans.Direction)
		}
		sel.Direction = ans.Direction
	default:
		return sel, fmt.Errorf("%w: step %q", ErrInvalidAnswer, step)
	}

	return sel, nil
}

// checkOrder requires ids to be a permutation of the cards on offer.
func checkOrder(ids []int, cards []Card) error {
	if len(ids) != len(cards) {
		return fmt.Errorf("%w: ordered %d of %d cards", ErrInvalidAnswer, len(ids), len(cards))
	}

	want := make([]int, 0, len(cards))
	for _, c := range cards {
		want = append(want, c.ID)
	}
	got := slices.Clone(ids)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return fmt.Errorf("%w: order %v is not a permutation of the discarded cards", ErrInvalidAnswer, ids)
	}
	return nil
}

func back(state FlowState, b BackRequest) (FlowState, *Request, error) {
	if err := active(state, b.Generation, b.Step); err != nil {
		return state, nil, err
	}

	prev, sel, ok := table[state.Kind].retreat(state.Step, state.Selections)
	if !ok {
		return state, nil, ErrNoBackStep
	}

	next := state
	next.Step = prev
	next.Selections = sel
	next.BackRequested = true

	return next, nil, nil
}
