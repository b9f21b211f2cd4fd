/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Card is a single game card, either in a hand, a detective set, or the discard pile.
type Card struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// Secret is a player's secret card. Name is withheld by the server unless the
// secret has been revealed or belongs to the viewer.
type Secret struct {
	ID       int     `json:"id"`
	Revealed bool    `json:"revealed"`
	Name     *string `json:"name"`
}

// DetectiveSet is a group of detective cards laid down by a player.
type DetectiveSet struct {
	SetID int    `json:"setId"`
	Cards []Card `json:"cards"`
}

type Player struct {
	ID      int            `json:"id"`
	Name    string         `json:"name,omitempty"`
	Sets    []DetectiveSet `json:"sets"`
	Secrets []Secret       `json:"secrets"`
}

// Snapshot is the read-only view of the game the orchestrator derives candidates from.
type Snapshot struct {
	Players        []Player `json:"players"`
	PrivateSecrets []Secret `json:"privateSecrets"`
	PrivateCards   []Card   `json:"privateCards"`
	ActingPlayerID int      `json:"actingPlayerId"`
}

// Player looks up a player by id.
func (s Snapshot) Player(id int) (Player, bool) {
	i := slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
	if i < 0 {
		return Player{}, false
	}
	return s.Players[i], true
}

// Validate reports secrets whose names leak to a viewer who may not see them.
func (s Snapshot) Validate() error {
	for _, p := range s.Players {
		owned := p.ID == s.ActingPlayerID
		for _, sec := range p.Secrets {
			if sec.Name != nil && !sec.Revealed && !owned {
				return fmt.Errorf("secret %d of player %d: name visible while hidden", sec.ID, p.ID)
			}
		}
	}
	return nil
}

// StateSource supplies the latest snapshot. It is read on every prompt and never mutated.
type StateSource interface {
	Snapshot() Snapshot
}

// StateStore holds the most recent snapshot pushed by the server.
type StateStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStateStore(actingPlayerID int) *StateStore {
	return &StateStore{snap: Snapshot{ActingPlayerID: actingPlayerID}}
}

func (s *StateStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snap
}

// SetPublic replaces the public player list.
func (s *StateStore) SetPublic(players []Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Players = players
}

// SetPrivate replaces the viewer's own secrets and hand.
func (s *StateStore) SetPrivate(secrets []Secret, cards []Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.PrivateSecrets = secrets
	s.snap.PrivateCards = cards
}

// Selections are the answers collected so far in a flow.
type Selections struct {
	Player1      *int      `json:"player1,omitempty"`
	Player2      *int      `json:"player2,omitempty"`
	Secret       *int      `json:"secret,omitempty"`
	Set          *int      `json:"set,omitempty"`
	Card         *int      `json:"card,omitempty"`
	OrderedCards []int     `json:"orderedCardIds,omitempty"`
	Direction    Direction `json:"direction,omitempty"`
}

// Phase is the coarse orchestrator state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingStep
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingStep:
		return "awaiting_step"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// FlowState is the single in-progress resolution of one effect notification.
// Step is StepNone exactly when Kind is KindNone.
type FlowState struct {
	Kind          Kind            `json:"kind"`
	Step          Step            `json:"step"`
	Selections    Selections      `json:"selections"`
	BackRequested bool            `json:"backRequested"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Generation    uint64          `json:"generation"`
	Submitting    bool            `json:"submitting"`
}

func (f FlowState) Phase() Phase {
	switch {
	case f.Kind == KindNone:
		return PhaseIdle
	case f.Submitting:
		return PhaseSubmitting
	default:
		return PhaseAwaitingStep
	}
}

// idle returns the empty state, keeping the generation counter.
func (f FlowState) idle() FlowState {
	return FlowState{Generation: f.Generation}
}
