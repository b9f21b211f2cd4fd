/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/sleuthbox/effects"
	"github.com/julienschmidt/httprouter"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(w)

		written, err := w.Write([]byte("sleuthbox v" + releaseVersion + "\n"))
		if err != nil {
			warnf("ERROR: Version page to %s: %v", realIP(r), err)
			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	securityHeaders(w)

	_, _ = w.Write([]byte("Ok\n"))
}

// flowStatus is the JSON view of the active flow and the prompt it is waiting on.
type flowStatus struct {
	Phase  string            `json:"phase"`
	Reset  string            `json:"reset"`
	Flow   effects.FlowState `json:"flow"`
	Prompt *effects.Prompt   `json:"prompt,omitempty"`
}

func serveFlow(cfg *Config, m *effects.Manager, source effects.StateSource) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		state := m.State()
		status := flowStatus{
			Phase: state.Phase().String(),
			Reset: cfg.resetPolicy.String(),
			Flow:  state,
		}
		if state.Phase() == effects.PhaseAwaitingStep {
			p := effects.BuildPrompt(state, source.Snapshot())
			status.Prompt = &p
		}

		data, err := json.Marshal(status)
		if err != nil {
			http.Error(w, "encoding failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		securityHeaders(w)

		written, err := w.Write(data)
		if err != nil {
			warnf("ERROR: Flow status to %s: %v", realIP(r), err)
			return
		}

		logf(cfg, "SERVE: Flow status (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func newStatusRouter(cfg *Config, m *effects.Manager, source effects.StateSource) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		warnf("ERROR: Panic serving %s to %s: %v", r.URL.Path, realIP(r), i)
		http.Error(w, "An error has occurred. Please try again.", http.StatusInternalServerError)
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck)

	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	mux.GET(cfg.prefix+"/flow", serveFlow(cfg, m, source))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

// serveStatus runs the local status server until ctx is cancelled.
func serveStatus(ctx context.Context, cfg *Config, m *effects.Manager, source effects.StateSource) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newStatusRouter(cfg, m, source),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	errs := make(chan error, 1)
	go func() {
		logf(cfg, "SERVE: Listening on http://%s%s/", srv.Addr, cfg.prefix)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
