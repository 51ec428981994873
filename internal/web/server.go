package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/buddyinbox/internal/coordinator"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
)

const (
	maxJSONBody   = 64 << 10
	maxBackupBody = 16 << 20

	shutdownTimeout = 5 * time.Second
)

type Server struct {
	coord *coordinator.Coordinator
	log   logging.Logger
	hub   *hub
	unsub func()
}

// New wires a Server to c. Close must be called to stop the state push.
func New(c *coordinator.Coordinator, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{coord: c, log: log, hub: newHub(log)}
	s.unsub = c.OnChange(func() { s.hub.broadcast(c.Snapshot()) })
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.serveIndex)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Delete("/users/{name}", s.handleRemoveUser)

		r.Post("/messages", s.handleSend)
		r.Delete("/messages", s.handleClear)
		r.Post("/conversation/read", s.handleOpenConversation)
		r.Delete("/conversation", s.handleDeleteConversation)

		r.Post("/lock", s.handleLock)
		r.Post("/unlock", s.handleUnlock)

		r.Get("/room", s.handleRoom)
		r.Post("/room", s.handleJoinRoom)
		r.Delete("/room", s.handleLeaveRoom)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn(ctx, "http shutdown", "error", err)
		return err
	}
	return nil
}

// Close stops pushing state and disconnects every WebSocket client.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	s.hub.closeAll()
}
