// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Snake backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     request logging).
//   - Public endpoints: "/", "/health".
//   - Game lifecycle: POST /game/new, GET /game/{id}, POST /game/{id}/reset,
//     DELETE /game/{id}.
//   - Display endpoints (only when the host has a display):
//     POST /game/{id}/direction, GET /game/{id}/board.txt, GET /game/{id}/ws.
//
// Notes:
//   - Each game is a session.Session running in its own goroutine; the
//     server only forwards commands and reads snapshots.
//   - Mutating routes require the game's control token (see auth.go).
//   - A game ends on its own when its token expires or it sits idle with no
//     viewers; it is then dropped from the store.
//   - WebSocket upgrades are only accepted from the configured client origin.
//   - Without a display no input source or renderer is mounted, mirroring a
//     host where keyboard and canvas do not exist.

package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snake/apps/go-server/internal/config"
	"github.com/robalobadob/snake/apps/go-server/internal/game"
	"github.com/robalobadob/snake/apps/go-server/internal/input"
	"github.com/robalobadob/snake/apps/go-server/internal/render"
	"github.com/robalobadob/snake/apps/go-server/internal/session"
	"github.com/robalobadob/snake/apps/go-server/internal/store"
)

// defaultClientOrigin is the Vite dev server.
const defaultClientOrigin = "http://localhost:5173"

// Server bundles router, session registry and configuration.
type Server struct {
	r        *chi.Mux
	store    store.Store
	cfg      config.Config
	tokens   *tokenIssuer
	upgrader websocket.Upgrader
	now      func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, cfg config.Config) *Server {
	return newServer(st, cfg, time.Now)
}

func newServer(st store.Store, cfg config.Config, now func() time.Time) *Server {
	origin := cfg.ClientOrigin
	if origin == "" {
		origin = defaultClientOrigin
	}
	s := &Server{
		r:      chi.NewRouter(),
		store:  st,
		cfg:    cfg,
		tokens: newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     allowOrigin(origin),
		},
		now: now,
	}
	s.tokens.now = now

	// --- middleware ---
	s.r.Use(chimw.RequestID)        // add X-Request-ID
	s.r.Use(chimw.RealIP)           // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)          // one log line per request
	s.r.Use(chimw.Recoverer)        // recover from panics
	s.r.Use(cors(origin))           // credentials-friendly CORS
	s.r.Use(jsonContentType)        // default JSON responses

	// Plain request/response routes get a bounded handler time; the
	// WebSocket stream must outlive it.
	timeout := chimw.Timeout(10 * time.Second)

	s.r.With(timeout).Get("/", s.handleIndex)
	s.r.With(timeout).Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"ok": true})
	})
	s.r.With(timeout).Get("/debug/sessions", s.handleListSessions)

	s.r.With(timeout).Post("/game/new", s.handleNewGame)
	s.r.Route("/game/{id}", func(r chi.Router) {
		r.Use(s.withSession)
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/", s.handleGetFrame)
			r.With(s.requireControl()).Post("/reset", s.handleReset)
			r.With(s.requireControl()).Delete("/", s.handleDelete)
			if cfg.HasDisplay {
				r.With(s.requireControl()).Post("/direction", s.handleDirection)
				r.Get("/board.txt", s.handleBoardText)
			}
		})
		if cfg.HasDisplay {
			r.With(s.withOptionalControl()).Get("/ws", s.handleWS)
		}
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "not_found")
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// StopAll stops every running session. Used on shutdown.
func (s *Server) StopAll(ctx context.Context) {
	for _, sess := range s.store.List(ctx) {
		if _, err := s.store.Delete(ctx, sess.ID); err == nil {
			sess.Stop()
		}
	}
}

// expire drops a session that ended on its own.
func (s *Server) expire(id string) {
	sess, err := s.store.Delete(context.Background(), id)
	if err != nil {
		return
	}
	sess.Stop()
	log.Info().Str("gameId", id).Msg("game expired")
}

// allowOrigin accepts browsers from origin and clients that send no Origin
// header at all (browsers always send one on WebSocket upgrades).
func allowOrigin(origin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || strings.EqualFold(o, origin)
	}
}

// ------------------------------ INDEX --------------------------------------

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{
		"/health",
		"POST /game/new",
		"GET /game/{id}",
		"POST /game/{id}/reset",
		"DELETE /game/{id}",
	}
	if s.cfg.HasDisplay {
		endpoints = append(endpoints,
			"POST /game/{id}/direction",
			"GET /game/{id}/board.txt",
			"GET /game/{id}/ws",
		)
	}
	writeJSON(w, map[string]any{
		"service":    "snake-go",
		"hasDisplay": s.cfg.HasDisplay,
		"board":      s.cfg.Game.Board(),
		"tickMs":     s.cfg.Game.TickMs,
		"endpoints":  endpoints,
	})
}

// ------------------------------- GAME --------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Seed *int64 `json:"seed"` // optional fixed food sequence (testing)
}
type newGameRes struct {
	GameID    string       `json:"gameId"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Board     game.Board   `json:"board"`
	TickMs    int          `json:"tickMs"`
	Frame     render.Frame `json:"frame"`
}

// handleNewGame creates an engine, registers its session and starts the clock.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "bad_json")
		return
	}

	eng, err := s.newEngine(req.Seed)
	if err != nil {
		log.Error().Err(err).Msg("create engine")
		jsonError(w, http.StatusInternalServerError, "engine_failed")
		return
	}

	id := genID()
	tok, exp, err := s.tokens.sign(id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "sign_failed")
		return
	}

	sess := session.New(id, eng, session.Options{
		Interval:    s.cfg.Game.Interval(),
		ExpiresAt:   exp,
		IdleTimeout: s.cfg.IdleTimeout(),
		Now:         s.now,
		OnExpire:    s.expire,
	})
	if err := s.store.Save(r.Context(), sess); err != nil {
		if errors.Is(err, store.ErrFull) {
			jsonError(w, http.StatusServiceUnavailable, "too_many_games")
			return
		}
		log.Error().Err(err).Msg("save session")
		jsonError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	go sess.Run()
	log.Info().Str("gameId", id).Msg("game started")

	writeJSON(w, newGameRes{
		GameID:    id,
		Token:     tok,
		ExpiresAt: exp.UTC(),
		Board:     eng.Board(),
		TickMs:    s.cfg.Game.TickMs,
		Frame:     render.NewFrame(id, sess.State()),
	})
}

// newEngine picks the food seed: request, then config, then random.
func (s *Server) newEngine(seed *int64) (*game.Engine, error) {
	board := s.cfg.Game.Board()
	switch {
	case seed != nil:
		return game.NewSeeded(board, *seed)
	case s.cfg.Game.Seed != 0:
		return game.NewSeeded(board, s.cfg.Game.Seed)
	}
	return game.New(board, nil)
}

// handleGetFrame returns the last published snapshot. It never touches the
// engine.
func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	writeJSON(w, render.NewFrame(sess.ID, sess.State()))
}

// handleReset restarts the game and its clock.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	st, err := sess.Reset(r.Context())
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, render.NewFrame(sess.ID, st))
}

// handleDelete stops the game and forgets it.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, http.StatusNotFound, "not_found")
		return
	}
	sess.Stop()
	log.Info().Str("gameId", sess.ID).Msg("game deleted")
	writeJSON(w, map[string]bool{"ok": true})
}

// directionReq accepts either a key name ("ArrowUp") or a direction ("up").
type directionReq struct {
	Key string `json:"key"`
	Dir string `json:"dir"`
}
type directionRes struct {
	Accepted bool         `json:"accepted"`
	Frame    render.Frame `json:"frame"`
}

// handleDirection is the HTTP input source.
func (s *Server) handleDirection(w http.ResponseWriter, r *http.Request) {
	var req directionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "bad_json")
		return
	}
	key := req.Key
	if key == "" {
		key = req.Dir
	}
	d, ok := input.FromKey(key)
	if !ok {
		jsonError(w, http.StatusBadRequest, "unknown_key")
		return
	}

	sess := sessionFrom(r)
	accepted, err := sess.SetDirection(r.Context(), d)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, directionRes{Accepted: accepted, Frame: render.NewFrame(sess.ID, sess.State())})
}

// handleBoardText is the plain-text renderer.
func (s *Server) handleBoardText(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := (render.Text{W: w}).Draw(sess.State()); err != nil {
		log.Warn().Err(err).Msg("draw board")
	}
}

// handleListSessions is a small debug view of running games.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	type row struct {
		GameID      string     `json:"gameId"`
		Created     time.Time  `json:"created"`
		Phase       game.Phase `json:"phase"`
		Score       int        `json:"score"`
		Length      int        `json:"length"`
		Subscribers int        `json:"subscribers"`
	}
	out := []row{}
	for _, sess := range s.store.List(r.Context()) {
		st := sess.State()
		out = append(out, row{
			GameID:      sess.ID,
			Created:     sess.Created,
			Phase:       st.Phase,
			Score:       st.Score,
			Length:      len(st.Snake),
			Subscribers: sess.Subscribers(),
		})
	}
	writeJSON(w, out)
}

// sessionError maps session errors onto HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrStopped):
		jsonError(w, http.StatusConflict, "game_stopped")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		jsonError(w, http.StatusServiceUnavailable, "timeout")
	default:
		jsonError(w, http.StatusInternalServerError, "internal")
	}
}

// genID creates a 22‑char URL‑safe, crypto‑random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}
