/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package effects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Submitter delivers a resolved request to the action API.
type Submitter interface {
	Submit(ctx context.Context, req Request) error
}

// HTTPSubmitter posts resolved requests to the game server.
type HTTPSubmitter struct {
	baseURL    string
	gameID     string
	playerID   int
	endpoints  map[Kind]string
	httpClient *http.Client
}

// SubmitterOption configures an HTTPSubmitter.
type SubmitterOption func(*HTTPSubmitter)

// WithEndpoints replaces the endpoint templates. Kinds missing from m, or
// mapped to an empty template, are treated as unconfigured.
func WithEndpoints(m map[Kind]string) SubmitterOption {
	return func(s *HTTPSubmitter) { s.endpoints = maps.Clone(m) }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) SubmitterOption {
	return func(s *HTTPSubmitter) { s.httpClient = hc }
}

// WithTimeout sets the transport timeout for each submission.
func WithTimeout(d time.Duration) SubmitterOption {
	return func(s *HTTPSubmitter) { s.httpClient.Timeout = d }
}

// NewHTTPSubmitter creates a submitter for gameID on the server at baseURL
// (e.g. "http://localhost:8080"), acting as playerID.
func NewHTTPSubmitter(baseURL, gameID string, playerID int, opts ...SubmitterOption) *HTTPSubmitter {
	s := &HTTPSubmitter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		gameID:    gameID,
		playerID:  playerID,
		endpoints: DefaultEndpoints(),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Endpoint resolves the URL for k, or returns ErrEndpointNotConfigured.
func (s *HTTPSubmitter) Endpoint(k Kind) (string, error) {
	tmpl := s.endpoints[k]
	if tmpl == "" {
		return "", fmt.Errorf("%w: %s", ErrEndpointNotConfigured, k)
	}
	path := strings.ReplaceAll(tmpl, ":gameId", url.PathEscape(s.gameID))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path, nil
}

// Body builds the JSON object sent for req.
func (s *HTTPSubmitter) Body(req Request) map[string]any {
	body := make(map[string]any, len(req.Fields)+2)
	maps.Copy(body, req.Fields)
	body["event"] = req.Kind
	body["playerId"] = s.playerID
	return body
}

// Submit sends exactly one POST for req. It never retries.
func (s *HTTPSubmitter) Submit(ctx context.Context, req Request) error {
	endpoint, err := s.Endpoint(req.Kind)
	if err != nil {
		return err
	}

	data, err := json.Marshal(s.Body(req))
	if err != nil {
		return fmt.Errorf("submit %s: marshal: %w", req.Kind, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("submit %s: new request: %w", req.Kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit %s: %w", req.Kind, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	return nil
}
