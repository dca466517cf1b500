package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/mcdev12/feud/go/internal/game"
	"github.com/mcdev12/feud/go/internal/models"
	"github.com/mcdev12/feud/go/internal/questionbank"
)

const (
	defaultQRSize   = 320
	maxRequestBytes = 1 << 16
)

// StatsFunc reports extra numbers for /ws/stats, e.g. event delivery counters.
type StatsFunc func() any

// Service wires the game app to HTTP and WebSocket clients.
type Service struct {
	app        App
	manager    *ConnectionManager
	dispatcher *Dispatcher
	config     Config
}

// Config holds configuration for the gateway service
type Config struct {
	Connection ConnectionConfig
	// PublicURL is the base URL players open to join; the QR endpoint
	// encodes PublicURL/join/<code>.
	PublicURL string
	QRSize    int
	Stats     StatsFunc
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		Connection: DefaultConnectionConfig(),
		QRSize:     defaultQRSize,
	}
}

// NewService creates the connection manager and dispatcher for app.
func NewService(app App, config Config, clock clockwork.Clock) *Service {
	if config.QRSize <= 0 {
		config.QRSize = defaultQRSize
	}
	manager := NewConnectionManager(config.Connection, nil)
	dispatcher := NewDispatcher(app, manager, clock)
	manager.SetHandler(dispatcher)

	return &Service{
		app:        app,
		manager:    manager,
		dispatcher: dispatcher,
		config:     config,
	}
}

// Manager returns the connection manager, which is also the room event sink.
func (s *Service) Manager() *ConnectionManager {
	return s.manager
}

// Start runs the broadcast loop until ctx is done, then closes every
// connection.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting game gateway service")
	s.manager.Start(ctx)
	s.manager.CloseAll()
}

// RegisterRoutes registers the REST, WebSocket and health routes.
func (s *Service) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/games", s.handleCreateGame)
	router.GET("/api/games/:code/state", s.handleGetState)
	router.GET("/api/games/:code/players", s.handleGetPlayers)
	router.GET("/api/games/:code/qr", s.handleQR)
	router.GET("/ws/game", s.handleGameConnection)
	router.GET("/ws/stats", s.handleConnectionStats)
	router.GET("/health", s.handleHealth)
}

// Handler returns a router with every gateway route registered.
func (s *Service) Handler() http.Handler {
	router := httprouter.New()
	s.RegisterRoutes(router)
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panicked")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return router
}

type createGameRequest struct {
	QuestionSet string `json:"question_set"`
}

type createGameResponse struct {
	Code    string `json:"code"`
	ID      string `json:"id"`
	JoinURL string `json:"join_url,omitempty"`
}

// handleCreateGame handles POST /api/games
func (s *Service) handleCreateGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createGameRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	g, err := s.app.CreateGame(r.Context(), req.QuestionSet)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createGameResponse{
		Code:    g.Code,
		ID:      g.ID.String(),
		JoinURL: s.joinURL(g.Code),
	})
}

// handleGetState handles GET /api/games/:code/state
func (s *Service) handleGetState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	g, err := s.app.GetGame(r.Context(), game.NormalizeCode(ps.ByName("code")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Redacted())
}

// handleGetPlayers handles GET /api/games/:code/players
func (s *Service) handleGetPlayers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	players, err := s.app.GetPlayers(r.Context(), game.NormalizeCode(ps.ByName("code")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

// handleQR handles GET /api/games/:code/qr
func (s *Service) handleQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := game.NormalizeCode(ps.ByName("code"))
	if _, err := s.app.GetGame(r.Context(), code); err != nil {
		s.writeError(w, r, err)
		return
	}

	target := s.joinURL(code)
	if target == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		target = scheme + "://" + r.Host + "/join/" + code
	}

	png, err := qrcode.Encode(target, qrcode.Medium, s.config.QRSize)
	if err != nil {
		log.Error().Err(err).Str("game_code", code).Msg("qr generation failed")
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleGameConnection handles GET /ws/game?code=ABC234&role=host|player
func (s *Service) handleGameConnection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	code := game.NormalizeCode(r.URL.Query().Get("code"))
	if !game.ValidCode(code) {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	role := Role(r.URL.Query().Get("role"))
	switch role {
	case "":
		role = RolePlayer
	case RoleHost, RolePlayer:
	default:
		http.Error(w, "role must be host or player", http.StatusBadRequest)
		return
	}
	if _, err := s.app.GetGame(r.Context(), code); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.manager.UpgradeConnection(w, r, code, role); err != nil {
		// the upgrader has already written the HTTP error
		log.Error().
			Err(err).
			Str("game_code", code).
			Msg("failed to upgrade WebSocket connection")
	}
}

// handleConnectionStats handles GET /ws/stats
func (s *Service) handleConnectionStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	resp := struct {
		ConnectionStats
		Events any `json:"events,omitempty"`
	}{ConnectionStats: s.manager.GetConnectionStats()}
	if s.config.Stats != nil {
		resp.Events = s.config.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (s *Service) joinURL(code string) string {
	if s.config.PublicURL == "" {
		return ""
	}
	return strings.TrimSuffix(s.config.PublicURL, "/") + "/join/" + code
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	reason := game.RejectReason(err)
	if errors.Is(err, questionbank.ErrSetNotFound) {
		reason = "unknown-question-set"
	}
	writeJSON(w, status, map[string]string{
		"reason":  reason,
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrGameNotFound), errors.Is(err, models.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, questionbank.ErrSetNotFound), errors.Is(err, models.ErrInvalidQuestionBank):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	case game.IsRejection(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
