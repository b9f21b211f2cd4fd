/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

type secretFilter int

const (
	anySecret secretFilter = iota
	revealedSecrets
	hiddenSecrets
)

func (f secretFilter) keep(s Secret) bool {
	switch f {
	case revealedSecrets:
		return s.Revealed
	case hiddenSecrets:
		return !s.Revealed
	default:
		return true
	}
}

// definition is one row of the transition table.
type definition struct {
	// steps are asked in order; the first one without an answer is next.
	steps       []Step
	back        map[Step]Step
	excludeSelf bool
	secrets     secretFilter
	endpoint    string
	fields      func(Selections) map[string]any
}

var table = map[Kind]definition{
	KindSelectAnyPlayer: {
		steps:    []Step{StepSelectPlayer},
		endpoint: "/game/:gameId/select-any-player",
		fields: func(s Selections) map[string]any {
			return map[string]any{"selectedPlayerId": *s.Player1}
		},
	},
	KindStealSet: {
		steps:       []Step{StepSelectPlayer, StepSelectSet},
		back:        map[Step]Step{StepSelectSet: StepSelectPlayer},
		excludeSelf: true,
		endpoint:    "/game/:gameId/steal-set",
		fields:      setFields,
	},
	KindAndThenThereWasOneMore: {
		steps: []Step{StepSelectPlayer, StepSelectSecret, StepSelectPlayer2},
		back: map[Step]Step{
			StepSelectSecret:  StepSelectPlayer,
			StepSelectPlayer2: StepSelectSecret,
		},
		secrets:  revealedSecrets,
		endpoint: "/game/:gameId/and-then-there-was-one-more",
		fields: func(s Selections) map[string]any {
			return map[string]any{
				"selectedPlayerId": *s.Player1,
				"secretId":         *s.Secret,
				"stolenPlayerId":   *s.Player2,
			}
		},
	},
	KindRevealSecret: {
		steps:    []Step{StepSelectPlayer, StepSelectSecret},
		back:     map[Step]Step{StepSelectSecret: StepSelectPlayer},
		secrets:  hiddenSecrets,
		endpoint: "/game/:gameId/reveal-secret",
		fields: func(s Selections) map[string]any {
			return map[string]any{"revealedPlayerId": *s.Player1, "secretId": *s.Secret}
		},
	},
	KindRevealOwnSecret: {
		steps:    []Step{StepSelectSecret},
		secrets:  hiddenSecrets,
		endpoint: "/game/:gameId/reveal-own-secret",
		fields: func(s Selections) map[string]any {
			return map[string]any{"secretId": *s.Secret}
		},
	},
	KindHideSecret: {
		steps:    []Step{StepSelectPlayer, StepSelectSecret},
		back:     map[Step]Step{StepSelectSecret: StepSelectPlayer},
		secrets:  revealedSecrets,
		endpoint: "/game/:gameId/hide-secret",
		fields: func(s Selections) map[string]any {
			return map[string]any{"hiddenPlayerId": *s.Player1, "secretId": *s.Secret}
		},
	},
	KindLookIntoTheAshes: {
		steps:    []Step{StepSelectCard},
		endpoint: "/game/:gameId/look-into-the-ashes",
		fields:   cardFields,
	},
	KindDelayTheMurderersEscape: {
		steps:    []Step{StepOrderDiscard},
		endpoint: "/game/:gameId/delay-the-murderers-escape",
		fields: func(s Selections) map[string]any {
			return map[string]any{"cards": s.OrderedCards}
		},
	},
	KindSelectOwnCard: {
		steps:    []Step{StepSelectCard},
		endpoint: "/game/:gameId/select-own-card",
		fields:   cardFields,
	},
	KindSelectDirection: {
		steps:    []Step{StepSelectDirection},
		endpoint: "/game/:gameId/select-direction",
		fields: func(s Selections) map[string]any {
			return map[string]any{"direction": s.Direction}
		},
	},
	KindSelectSet: {
		steps:    []Step{StepSelectPlayer, StepSelectSet},
		back:     map[Step]Step{StepSelectSet: StepSelectPlayer},
		endpoint: "/game/:gameId/select-set",
		fields:   setFields,
	},
}

func setFields(s Selections) map[string]any {
	return map[string]any{"stolenPlayerId": *s.Player1, "setId": *s.Set}
}

func cardFields(s Selections) map[string]any {
	return map[string]any{"cardId": *s.Card}
}

// DefaultEndpoints returns a fresh copy of the built-in endpoint templates.
func DefaultEndpoints() map[Kind]string {
	out := make(map[Kind]string, len(table))
	for k, def := range table {
		out[k] = def.endpoint
	}
	return out
}

// InitialStep is the first step asked for k, or StepNone if k is unknown.
func InitialStep(k Kind) Step {
	def, ok := table[k]
	if !ok {
		return StepNone
	}
	return def.steps[0]
}

// answered reports whether sel already holds the answer for step.
func answered(step Step, sel Selections) bool {
	switch step {
	case StepSelectPlayer:
		return sel.Player1 != nil
	case StepSelectPlayer2:
		return sel.Player2 != nil
	case StepSelectSecret:
		return sel.Secret != nil
	case StepSelectSet:
		return sel.Set != nil
	case StepSelectCard:
		return sel.Card != nil
	case StepOrderDiscard:
		return sel.OrderedCards != nil
	case StepSelectDirection:
		return sel.Direction.valid()
	}
	return false
}

// advance returns the next unanswered step, or submit=true when every step has an answer.
func (d definition) advance(sel Selections) (next Step, submit bool) {
	for _, step := range d.steps {
		if !answered(step, sel) {
			return step, false
		}
	}
	return StepNone, true
}

// retreat returns the previous step and the selections with both the current
// and upstream answers cleared, so advance lands on the previous step again.
func (d definition) retreat(step Step, sel Selections) (Step, Selections, bool) {
	prev, ok := d.back[step]
	if !ok {
		return StepNone, sel, false
	}

	switch step {
	case StepSelectSet:
		sel.Set, sel.Player1 = nil, nil
	case StepSelectSecret:
		sel.Secret, sel.Player1 = nil, nil
	case StepSelectPlayer2:
		sel.Player2, sel.Secret = nil, nil
	}

	return prev, sel, true
}

// CanGoBack reports whether step of k has a backward transition.
func CanGoBack(k Kind, step Step) bool {
	_, ok := table[k].back[step]
	return ok
}
