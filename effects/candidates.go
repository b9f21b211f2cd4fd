/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"encoding/json"
	"fmt"
	"slices"
)

// EligiblePlayers lists the players k may target. Effects that forbid
// self-targeting drop the acting player.
func EligiblePlayers(k Kind, snap Snapshot) []Player {
	def := table[k]

	out := make([]Player, 0, len(snap.Players))
	for _, p := range snap.Players {
		if def.excludeSelf && p.ID == snap.ActingPlayerID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// EligibleSecrets lists the secrets of the chosen player, or the viewer's own
// private secrets when no other player is chosen, filtered by the effect's
// revealed/hidden requirement.
func EligibleSecrets(k Kind, sel Selections, snap Snapshot) []Secret {
	def := table[k]

	source := snap.PrivateSecrets
	if sel.Player1 != nil && *sel.Player1 != snap.ActingPlayerID {
		p, ok := snap.Player(*sel.Player1)
		if !ok {
			return []Secret{}
		}
		source = p.Secrets
	}

	out := make([]Secret, 0, len(source))
	for _, s := range source {
		if def.secrets.keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// EligibleSets lists the detective sets of the chosen player.
func EligibleSets(sel Selections, snap Snapshot) []DetectiveSet {
	if sel.Player1 == nil {
		return []DetectiveSet{}
	}

	p, ok := snap.Player(*sel.Player1)
	if !ok || p.Sets == nil {
		return []DetectiveSet{}
	}
	return p.Sets
}

// EligibleCards lists the cards attached to the notification, or the viewer's
// hand for effects that pick from it.
func EligibleCards(k Kind, payload json.RawMessage, snap Snapshot) []Card {
	switch k {
	case KindSelectOwnCard:
		if snap.PrivateCards == nil {
			return []Card{}
		}
		return snap.PrivateCards
	case KindLookIntoTheAshes, KindDelayTheMurderersEscape:
		return PayloadCards(payload)
	}
	return []Card{}
}

// PayloadCards decodes the cards attached to a notification. Both a bare list
// and an object with a "cards" list are accepted; anything else yields no cards.
func PayloadCards(payload json.RawMessage) []Card {
	if len(payload) == 0 {
		return []Card{}
	}

	var cards []Card
	if err := json.Unmarshal(payload, &cards); err == nil && cards != nil {
		return cards
	}

	var wrapped struct {
		Cards []Card `json:"cards"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Cards != nil {
		return wrapped.Cards
	}

	return []Card{}
}

// BuildPrompt derives the widget input for the active step of state.
func BuildPrompt(state FlowState, snap Snapshot) Prompt {
	p := Prompt{
		Kind:      state.Kind,
		Step:      state.Step,
		Text:      promptText(state.Kind, state.Step),
		Options:   []Option{},
		CanGoBack: CanGoBack(state.Kind, state.Step),
	}

	switch state.Step {
	case StepSelectPlayer, StepSelectPlayer2:
		for _, pl := range EligiblePlayers(state.Kind, snap) {
			p.Options = append(p.Options, Option{ID: pl.ID, Label: playerLabel(pl)})
		}
	case StepSelectSecret:
		for _, s := range EligibleSecrets(state.Kind, state.Selections, snap) {
			p.Options = append(p.Options, Option{ID: s.ID, Label: secretLabel(s)})
		}
	case StepSelectSet:
		for _, s := range EligibleSets(state.Selections, snap) {
			p.Options = append(p.Options, Option{ID: s.SetID, Label: fmt.Sprintf("Set %d (%d cards)", s.SetID, len(s.Cards))})
		}
	case StepSelectCard, StepOrderDiscard:
		for _, c := range EligibleCards(state.Kind, state.Payload, snap) {
			p.Options = append(p.Options, Option{ID: c.ID, Label: cardLabel(c)})
		}
		p.Ordered = state.Step == StepOrderDiscard
	case StepSelectDirection:
		p.Options = append(p.Options,
			Option{Direction: DirectionLeft, Label: "Left"},
			Option{Direction: DirectionRight, Label: "Right"},
		)
	}

	return p
}

// CheckAnswer reports whether ans picks from what p offered. Back requests
// are left to the reducer.
func CheckAnswer(p Prompt, ans Answer) error {
	switch {
	case ans.Back:
		return nil
	case p.Ordered:
		cards := make([]Card, 0, len(p.Options))
		for _, o := range p.Options {
			cards = append(cards, Card{ID: o.ID})
		}
		return checkOrder(ans.IDs, cards)
	case p.Step == StepSelectDirection:
		if slices.ContainsFunc(p.Options, func(o Option) bool { return o.Direction == ans.Direction }) {
			return nil
		}
		return fmt.Errorf("%w: direction %q not offered", ErrInvalidAnswer, ans.Direction)
	}

	if slices.ContainsFunc(p.Options, func(o Option) bool { return o.ID == ans.ID }) {
		return nil
	}
	return fmt.Errorf("%w: %d is not a candidate for %s", ErrInvalidAnswer, ans.ID, p.Step)
}

func playerLabel(p Player) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Player %d", p.ID)
}

func secretLabel(s Secret) string {
	switch {
	case s.Name != nil:
		return *s.Name
	case s.Revealed:
		return fmt.Sprintf("Revealed secret %d", s.ID)
	default:
		return fmt.Sprintf("Hidden secret %d", s.ID)
	}
}

func cardLabel(c Card) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("Card %d", c.ID)
}

func promptText(k Kind, step Step) string {
	switch step {
	case StepSelectPlayer:
		switch k {
		case KindStealSet:
			return "Choose a player to steal a detective set from"
		case KindAndThenThereWasOneMore:
			return "Choose a player to take a revealed secret from"
		case KindRevealSecret:
			return "Choose a player whose secret will be revealed"
		case KindHideSecret:
			return "Choose a player whose secret will be hidden"
		case KindSelectSet:
			return "Choose the player whose set you want"
		}
		return "Choose a player"
	case StepSelectPlayer2:
		return "Choose the player who receives the secret"
	case StepSelectSecret:
		switch k {
		case KindRevealSecret, KindRevealOwnSecret:
			return "Choose a secret to reveal"
		case KindHideSecret:
			return "Choose a secret to hide"
		}
		return "Choose a secret"
	case StepSelectSet:
		return "Choose a detective set"
	case StepSelectCard:
		if k == KindLookIntoTheAshes {
			return "Choose a card from the discard pile"
		}
		return "Choose a card from your hand"
	case StepOrderDiscard:
		return "Put the cards back on the discard pile in order"
	case StepSelectDirection:
		return "Choose a direction to pass cards"
	}
	return ""
}
