/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"

	"github.com/Seednode/sleuthbox/effects"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"
)

var (
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
)

// flowBanner returns the line announcing a change of flow, or "" when prev to
// next is not worth announcing.
func flowBanner(prev, next effects.FlowState) string {
	switch {
	case next.Generation != prev.Generation && next.Kind != effects.KindNone:
		return accentStyle.Render(fmt.Sprintf("▶ %s", next.Kind))
	case next.Phase() == effects.PhaseSubmitting && prev.Phase() != effects.PhaseSubmitting:
		return mutedStyle.Render(fmt.Sprintf("… sending %s", next.Kind))
	case next.Phase() == effects.PhaseIdle && prev.Phase() != effects.PhaseIdle:
		return passStyle.Render(fmt.Sprintf("✓ %s done", prev.Kind))
	}
	return ""
}

func runClient(ctx context.Context, cfg *Config) error {
	logf(cfg, "START: sleuthbox v%s", releaseVersion)

	ctx, quit := context.WithCancel(ctx)
	defer quit()

	store := effects.NewStateStore(cfg.playerID)

	submitter := effects.NewHTTPSubmitter(cfg.server, cfg.gameID, cfg.playerID,
		effects.WithEndpoints(cfg.endpointMap),
		effects.WithTimeout(cfg.timeout),
	)

	var last effects.FlowState
	m := effects.NewManager(
		effects.WithPresenter(&terminalPresenter{quit: quit}),
		effects.WithSubmitter(submitter),
		effects.WithStateSource(store),
		effects.WithResetPolicy(cfg.resetPolicy),
		effects.WithLogger(func(format string, args ...any) { logf(cfg, format, args...) }, warnf),
		effects.WithObserver(func(next effects.FlowState) {
			if banner := flowBanner(last, next); banner != "" {
				fmt.Println(banner)
			}
			last = next
		}),
	)

	wsURL, err := effects.PushURL(cfg.server, cfg.pushPath, cfg.gameID, cfg.playerID)
	if err != nil {
		return err
	}

	listener := effects.NewListener(wsURL,
		effects.WithReconnectLimit(cfg.reconnect),
		effects.WithListenerLogger(func(format string, args ...any) { logf(cfg, format, args...) }),
	)

	logf(cfg, "START: Player %d in game %s (reset %s)", cfg.playerID, cfg.gameID, cfg.resetPolicy)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.Run(ctx)
	})

	g.Go(func() error {
		return listener.Listen(ctx, effects.Route(store, m))
	})

	if cfg.status {
		g.Go(func() error {
			return serveStatus(ctx, cfg, m, store)
		})
	}

	return g.Wait()
}
