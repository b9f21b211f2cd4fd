/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Seednode/sleuthbox/effects"
	"github.com/charmbracelet/huh"
)

// choice is one entry of a terminal select; back marks the "go back" entry.
type choice struct {
	option effects.Option
	back   bool
}

// terminalPresenter asks each step on the terminal with huh forms.
// Aborting a form (ctrl+c) quits the client.
type terminalPresenter struct {
	quit context.CancelFunc
}

func (p *terminalPresenter) Present(ctx context.Context, pr effects.Prompt) (effects.Answer, error) {
	if len(pr.Options) == 0 {
		fmt.Println(mutedStyle.Render(pr.Text + ": nothing to choose yet, waiting for the game state."))
		<-ctx.Done()
		return effects.Answer{}, ctx.Err()
	}

	if pr.Ordered {
		return p.reorder(ctx, pr)
	}

	var picked choice
	err := p.run(ctx, huh.NewSelect[choice]().
		Title(pr.Text).
		Options(selectOptions(pr)...).
		Value(&picked))
	if err != nil {
		return effects.Answer{}, err
	}

	return picked.answer(), nil
}

// selectOptions lists the entries of a single-choice step, with a trailing
// back entry when the step has one.
func selectOptions(pr effects.Prompt) []huh.Option[choice] {
	opts := make([]huh.Option[choice], 0, len(pr.Options)+1)
	for _, o := range pr.Options {
		opts = append(opts, huh.NewOption(o.Label, choice{option: o}))
	}
	if pr.CanGoBack {
		opts = append(opts, huh.NewOption("← Back", choice{back: true}))
	}
	return opts
}

func (c choice) answer() effects.Answer {
	if c.back {
		return effects.Answer{Back: true}
	}
	return effects.Answer{ID: c.option.ID, Direction: c.option.Direction}
}

// ordering collects a full card order one pick at a time, top card first.
type ordering struct {
	total     int
	remaining []effects.Option
	order     []int
}

func newOrdering(opts []effects.Option) *ordering {
	return &ordering{
		total:     len(opts),
		remaining: slices.Clone(opts),
		order:     make([]int, 0, len(opts)),
	}
}

// done reports whether the rest of the order is forced.
func (o *ordering) done() bool {
	return len(o.remaining) <= 1
}

func (o *ordering) pick(id int) {
	i := slices.IndexFunc(o.remaining, func(opt effects.Option) bool { return opt.ID == id })
	if i < 0 {
		return
	}
	o.order = append(o.order, id)
	o.remaining = slices.Delete(o.remaining, i, i+1)
}

func (o *ordering) title(text string) string {
	return fmt.Sprintf("%s (%d of %d)", text, len(o.order)+1, o.total)
}

func (o *ordering) ids() []int {
	out := slices.Clone(o.order)
	for _, opt := range o.remaining {
		out = append(out, opt.ID)
	}
	return out
}

func (p *terminalPresenter) reorder(ctx context.Context, pr effects.Prompt) (effects.Answer, error) {
	ord := newOrdering(pr.Options)

	for !ord.done() {
		opts := make([]huh.Option[effects.Option], 0, len(ord.remaining))
		for _, o := range ord.remaining {
			opts = append(opts, huh.NewOption(o.Label, o))
		}

		var picked effects.Option
		err := p.run(ctx, huh.NewSelect[effects.Option]().
			Title(ord.title(pr.Text)).
			Options(opts...).
			Value(&picked))
		if err != nil {
			return effects.Answer{}, err
		}

		ord.pick(picked.ID)
	}

	return effects.Answer{IDs: ord.ids()}, nil
}

func (p *terminalPresenter) run(ctx context.Context, field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeDracula()).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) && p.quit != nil {
		p.quit()
	}
	return err
}
