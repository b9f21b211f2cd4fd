/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import "context"

// Option is a single selectable entry shown by a widget.
type Option struct {
	ID        int       `json:"id"`
	Direction Direction `json:"direction,omitempty"`
	Label     string    `json:"label"`
}

// Prompt is everything a widget needs to render the active step.
type Prompt struct {
	Kind      Kind     `json:"kind"`
	Step      Step     `json:"step"`
	Text      string   `json:"text"`
	Options   []Option `json:"options"`
	Ordered   bool     `json:"ordered"`
	CanGoBack bool     `json:"canGoBack"`
}

// Answer is what a widget hands back: one id, the full ordering for reorder
// steps, a direction, or a request to go back.
type Answer struct {
	ID        int
	IDs       []int
	Direction Direction
	Back      bool
}

// Presenter asks the player to answer a prompt. ctx is cancelled when a newer
// notification supersedes the flow; implementations should return promptly then.
type Presenter interface {
	Present(ctx context.Context, p Prompt) (Answer, error)
}

type PresenterFunc func(ctx context.Context, p Prompt) (Answer, error)

func (f PresenterFunc) Present(ctx context.Context, p Prompt) (Answer, error) {
	return f(ctx, p)
}
