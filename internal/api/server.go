// Package api provides the local HTTP API for remote macro control and a
// websocket stream of playback progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"keyloop/internal/controller"
	"keyloop/internal/history"
	"keyloop/internal/macro"
	"keyloop/internal/player"
	"keyloop/internal/protocol"
	"keyloop/internal/storage"
	"keyloop/internal/ui"
	"keyloop/internal/window"
)

const shutdownTimeout = 5 * time.Second

// Controller is the part of the execution controller the API drives.
type Controller interface {
	Start(m macro.Macro, h window.Handle) error
	Stop()
	Status() controller.Status
}

// Library resolves macros by name.
type Library interface {
	List() []macro.Macro
	Get(name string) (macro.Macro, error)
	SetLoop(name string, p macro.LoopPolicy) (macro.Macro, error)
}

// History lists past runs.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options configures a Server.
type Options struct {
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token string
	// Titles are the window title filters used for /api/run.
	Titles  []string
	Locator window.Locator
	History History
	Logger  *slog.Logger
}

// Server provides HTTP API for remote control
type Server struct {
	ctrl    Controller
	lib     Library
	hist    History
	locator window.Locator
	titles  []string
	token   string
	logger  *slog.Logger
	hub     *progressHub

	startOnce sync.Once
}

// NewServer creates a new API server
func NewServer(ctrl Controller, lib Library, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Locator == nil {
		opts.Locator = window.NewSystem()
	}
	s := &Server{
		ctrl:    ctrl,
		lib:     lib,
		hist:    opts.History,
		locator: opts.Locator,
		titles:  append([]string(nil), opts.Titles...),
		token:   opts.Token,
		logger:  opts.Logger,
	}
	s.hub = newProgressHub(s)
	return s
}

// Handler returns the API routes wrapped in auth and recovery middleware.
// The progress hub is started on first use.
func (s *Server) Handler() http.Handler {
	s.startOnce.Do(func() { go s.hub.start() })

	mux := http.NewServeMux()
	mux.HandleFunc("/api/macros", s.handleMacros)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/loop", s.handleLoop)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.hub.serveWatcher)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/", ui.Handler(ui.Page{Title: "keyloop", NeedsToken: s.token != ""}))

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// ListenAndServe serves on port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)

	// tcp4 avoids IPv6-only binding on Windows
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", addr, err)
	}
	s.logger.Info("api server listening", "addr", ln.Addr().String(), "auth", s.token != "")

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		s.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Close disconnects websocket clients and stops the broadcast loop.
func (s *Server) Close() {
	s.hub.stop()
}

// OnProgress forwards playback progress to websocket watchers. It never
// blocks the playback goroutine.
func (s *Server) OnProgress(p player.Progress) {
	s.hub.publish(protocol.TypeProgress, protocol.FromProgress(p))
	if p.Event == player.EventDone {
		s.BroadcastStatus()
	}
}

// BroadcastStatus pushes the controller status to websocket watchers.
func (s *Server) BroadcastStatus() {
	s.hub.publish(protocol.TypeStatus, s.status())
}

func (s *Server) status() protocol.StatusPayload {
	st := s.ctrl.Status()
	out := protocol.StatusPayload{
		Running: st.Running,
		Macro:   st.Macro,
		RunID:   st.RunID,
		Started: st.Started,
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
	}
	return out
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("api handler panic", "path", r.URL.Path, "panic", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("api request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

		// The dashboard page and health check are public; the page asks for the token.
		if r.URL.Path == "/health" || r.URL.Path == "/" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" && !s.authorized(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authorized accepts a bearer header, or a token query parameter on /ws
// since browsers cannot set headers on websocket upgrades.
func (s *Server) authorized(r *http.Request) bool {
	if r.Header.Get("Authorization") == "Bearer "+s.token {
		return true
	}
	return r.URL.Path == "/ws" && r.URL.Query().Get("token") == s.token
}

type macroView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BuiltIn     bool   `json:"built_in"`
	Loop        string `json:"loop"`
	Steps       int    `json:"steps"`
}

// handleMacros handles GET /api/macros and GET /api/macros?name=<name>
func (s *Server) handleMacros(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if name := r.URL.Query().Get("name"); name != "" {
		m, err := s.lib.Get(name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, macro.ToRecord(m))
		return
	}

	list := s.lib.List()
	views := make([]macroView, 0, len(list))
	for _, m := range list {
		views = append(views, macroView{
			Name:        m.Name,
			Description: m.Description,
			BuiltIn:     m.BuiltIn,
			Loop:        m.Loop.String(),
			Steps:       len(m.Actions),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handleRun handles POST /api/run?name=<name>[&loop=once|infinite|N]
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing name parameter", http.StatusBadRequest)
		return
	}
	m, err := s.lib.Get(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if l := r.URL.Query().Get("loop"); l != "" {
		p, err := macro.ParseLoop(l)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m = m.WithLoop(p)
	}

	h, err := window.Resolve(s.locator, s.titles)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("api run request", "macro", m.Name, "loop", m.Loop.String(), "remote", r.RemoteAddr)
	if err := s.ctrl.Start(m, h); err != nil {
		s.writeError(w, err)
		return
	}
	s.BroadcastStatus()
	writeJSON(w, http.StatusAccepted, s.status())
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Stop()
	s.BroadcastStatus()
	writeJSON(w, http.StatusOK, s.status())
}

// handleLoop handles POST /api/loop?name=<name>&loop=once|infinite|N
func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	if q.Get("name") == "" || q.Get("loop") == "" {
		http.Error(w, "Missing name or loop parameter", http.StatusBadRequest)
		return
	}
	p, err := macro.ParseLoop(q.Get("loop"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := s.lib.SetLoop(q.Get("name"), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": m.Name, "loop": m.Loop.String()})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

type historyView struct {
	ID       string    `json:"id"`
	Macro    string    `json:"macro"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Seconds  float64   `json:"seconds"`
	Outcome  string    `json:"outcome"`
	Error    string    `json:"error,omitempty"`
}

// handleHistory handles GET /api/history[?limit=N]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	views := []historyView{}
	if s.hist != nil {
		entries, err := s.hist.Recent(r.Context(), limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		for _, e := range entries {
			views = append(views, historyView{
				ID:       e.ID,
				Macro:    e.Macro,
				Started:  e.Started,
				Finished: e.Finished,
				Seconds:  e.Duration().Seconds(),
				Outcome:  e.Outcome,
				Error:    e.Error,
			})
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, window.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, controller.ErrAlreadyRunning):
		code = http.StatusConflict
	case errors.Is(err, storage.ErrBuiltIn), errors.Is(err, storage.ErrReadOnly):
		code = http.StatusForbidden
	case macro.IsMalformed(err):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("api request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
