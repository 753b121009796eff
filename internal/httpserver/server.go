// internal/httpserver/server.go
//
// Optional ops HTTP surface for the Concentration server.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery, timeouts).
//   - Diagnostics: "/", "/health" (with the number of live sessions).
//   - History: GET /games/recent from the results store.
//   - GET /ws: the same line protocol carried over a WebSocket, one board
//     per socket. Each client line is a newline-terminated text message.
//
// Notes:
//   - JSON routes share a content type and a handler timeout; /ws is mounted
//     outside that group since a game can run for as long as the peer likes.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/robalobadob/concentration/internal/session"
	"github.com/robalobadob/concentration/internal/store"
)

// Tracker counts live sessions across transports.
type Tracker interface {
	// Track runs fn as a counted session. It reports false, without
	// running fn, once the server is shutting down.
	Track(fn func()) bool
	Active() int64
}

// Config wires a Server.
type Config struct {
	Handler        *session.Handler
	Store          store.Store
	Tracker        Tracker  // optional
	HistoryLimit   int      // default rows for /games/recent
	AllowedOrigins []string // extra WebSocket origin patterns
	Logger         zerolog.Logger
}

// Server bundles router, session handler and history store.
type Server struct {
	r   *chi.Mux
	cfg Config
	log zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg Config) *Server {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	s := &Server{r: chi.NewRouter(), cfg: cfg, log: cfg.Logger}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"concentration","endpoints":["/health","/games/recent","/ws"]}`))
		})
		r.Get("/health", s.handleHealth)
		r.Get("/games/recent", s.handleRecent)
	})

	s.r.Get("/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]string{"error": "not_found", "path": r.URL.Path})
		http.Error(w, string(body), http.StatusNotFound)
	})
	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
// Live WebSocket games see ctx cancelled through their request context.
func (s *Server) Serve(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ routes --------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var active int64
	if s.cfg.Tracker != nil {
		active = s.cfg.Tracker.Active()
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "active": active})
}

// handleRecent lists finished games, newest first. ?limit=n overrides the
// configured default.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"bad_limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}
	if s.cfg.Store == nil {
		_ = json.NewEncoder(w).Encode([]store.Result{})
		return
	}
	out, err := s.cfg.Store.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list results")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if out == nil {
		out = []store.Result{}
	}
	_ = json.NewEncoder(w).Encode(out)
}

// handleWS upgrades the request and plays one game over the socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept")
		return
	}
	ctx := r.Context()
	conn := &peerConn{
		Conn:   websocket.NetConn(ctx, c, websocket.MessageText),
		remote: wsAddr(r.RemoteAddr),
	}
	play := func() { s.cfg.Handler.Handle(ctx, conn, "websocket") }
	if s.cfg.Tracker != nil {
		if !s.cfg.Tracker.Track(play) {
			_ = c.Close(websocket.StatusGoingAway, "server shutting down")
		}
		return
	}
	play()
}

// peerConn reports the HTTP peer address instead of the socket's placeholder.
type peerConn struct {
	net.Conn
	remote net.Addr
}

func (c *peerConn) RemoteAddr() net.Addr { return c.remote }

type wsAddr string

func (a wsAddr) Network() string { return "websocket" }
func (a wsAddr) String() string  { return string(a) }
