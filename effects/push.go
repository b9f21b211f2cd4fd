/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Push messages that carry game state instead of an effect.
const (
	EventPublicState  = "publicState"
	EventPrivateState = "privateState"
)

// PushURL converts an http(s) server base URL into the websocket URL of the
// push channel for gameID. tmpl may contain :gameId.
func PushURL(baseURL, tmpl, gameID string, playerID int) (string, error) {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)

	parsed, err := url.Parse(u + strings.ReplaceAll(tmpl, ":gameId", url.PathEscape(gameID)))
	if err != nil {
		return "", fmt.Errorf("push: parse ws url: %w", err)
	}

	q := parsed.Query()
	q.Set("playerId", strconv.Itoa(playerID))
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

// Listener reads push messages from the game server, reconnecting with
// exponential backoff whenever the connection drops.
type Listener struct {
	wsURL      string
	dialer     *websocket.Dialer
	maxElapsed time.Duration
	logf       Logf
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithReconnectLimit stops reconnecting after d without a successful
// connection. Zero retries forever.
func WithReconnectLimit(d time.Duration) ListenerOption {
	return func(l *Listener) { l.maxElapsed = d }
}

func WithListenerLogger(fn Logf) ListenerOption {
	return func(l *Listener) { l.logf = fn }
}

func WithDialer(d *websocket.Dialer) ListenerOption {
	return func(l *Listener) { l.dialer = d }
}

func NewListener(wsURL string, opts ...ListenerOption) *Listener {
	l := &Listener{
		wsURL:  wsURL,
		dialer: websocket.DefaultDialer,
		logf:   discard,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Listen hands every text message to handle until ctx is cancelled.
func (l *Listener) Listen(ctx context.Context, handle func([]byte)) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = l.maxElapsed

	err := backoff.RetryNotify(func() error {
		return l.connect(ctx, bo, handle)
	}, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		l.logf("PUSH: %v; reconnecting in %s", err, d.Round(time.Millisecond))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *Listener) connect(ctx context.Context, bo *backoff.ExponentialBackOff, handle func([]byte)) error {
	conn, _, err := l.dialer.DialContext(ctx, l.wsURL, nil)
	if err != nil {
		return fmt.Errorf("push: ws dial: %w", err)
	}
	defer conn.Close()

	bo.Reset()
	l.logf("PUSH: Connected to %s", l.wsURL)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("push: ws read: %w", err)
		}

		if typ != websocket.TextMessage {
			continue
		}

		handle(data)
	}
}

type publicState struct {
	Players []Player `json:"players"`
}

type privateState struct {
	Secrets []Secret `json:"secrets"`
	Cards   []Card   `json:"cards"`
}

// Route returns a push handler that keeps store current from state messages
// and passes every other message to m.
func Route(store *StateStore, m *Manager) func([]byte) {
	return func(raw []byte) {
		n, err := ParseNotification(raw)
		if err != nil {
			m.warnf("WARN: Ignoring push message: %v", err)
			return
		}

		switch n.Event {
		case EventPublicState:
			var st publicState
			if err := json.Unmarshal(n.Payload, &st); err != nil {
				m.warnf("WARN: Ignoring %s: %v", n.Event, err)
				return
			}
			store.SetPublic(st.Players)
			if err := store.Snapshot().Validate(); err != nil {
				m.warnf("WARN: %s: %v", n.Event, err)
			}
			m.SnapshotChanged()
		case EventPrivateState:
			var st privateState
			if err := json.Unmarshal(n.Payload, &st); err != nil {
				m.warnf("WARN: Ignoring %s: %v", n.Event, err)
				return
			}
			store.SetPrivate(st.Secrets, st.Cards)
			m.SnapshotChanged()
		default:
			m.Dispatch(n)
		}
	}
}
