// Package admin implements the read-only admin/debug HTTP surface: a
// health check and session introspection, never the core relay path.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/core"
)

// ErrorResponse mirrors the shape used across the admin surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse is the JSON projection of core.SessionInfo.
type SessionResponse struct {
	GameType   string `json:"game_type"`
	MaxPlayers int    `json:"max_players"`
	StepTimeMs int64  `json:"step_time_ms"`
	Seed       int64  `json:"seed"`
	Players    int    `json:"players"`
	Step       uint64 `json:"step"`
}

// Handlers exposes read-only dispatcher state for operators.
type Handlers struct {
	dispatcher *core.Dispatcher
	metrics    *core.IdleWatchdogMetrics
	log        zerolog.Logger
}

// NewHandlers builds the admin handlers.
func NewHandlers(dispatcher *core.Dispatcher, metrics *core.IdleWatchdogMetrics, log zerolog.Logger) *Handlers {
	return &Handlers{dispatcher: dispatcher, metrics: metrics, log: log}
}

// Health responds 200 unconditionally; it only shows that the admin
// listener is up.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics reports idle-watchdog disconnect counts. Observability only:
// nothing in the system reads this value to make a decision.
// GET /debug/metrics
func (h *Handlers) Metrics(c *gin.Context) {
	total, lastMinute := h.metrics.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"idle_disconnects_total":       total,
		"idle_disconnects_last_minute": lastMinute,
	})
}

// ListSessions returns every active session.
// GET /debug/sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, toResponses(h.dispatcher.Sessions()))
}

// ListSessionsByType returns active sessions filtered by game type.
// GET /debug/sessions/:type
func (h *Handlers) ListSessionsByType(c *gin.Context) {
	gameType := c.Param("type")
	all := h.dispatcher.Sessions()
	filtered := make([]core.SessionInfo, 0, len(all))
	for _, s := range all {
		if s.GameType == gameType {
			filtered = append(filtered, s)
		}
	}
	c.JSON(http.StatusOK, toResponses(filtered))
}

func toResponses(sessions []core.SessionInfo) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			GameType:   s.GameType,
			MaxPlayers: s.MaxPlayers,
			StepTimeMs: s.StepTime.Milliseconds(),
			Seed:       s.Seed,
			Players:    s.Players,
			Step:       s.Step,
		})
	}
	return out
}

// LoggerMiddleware logs every admin request after it completes.
func LoggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("admin http request")
	}
}

// Server is the admin HTTP surface's own listener, independent of the
// core relay transports.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds the admin server, routing health and debug endpoints
// through gin with request logging.
func New(addr string, dispatcher *core.Dispatcher, metrics *core.IdleWatchdogMetrics, readHeaderTimeout time.Duration, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(log))

	h := NewHandlers(dispatcher, metrics, log)
	router.GET("/health", h.Health)
	router.GET("/debug/sessions", h.ListSessions)
	router.GET("/debug/sessions/:type", h.ListSessionsByType)
	router.GET("/debug/metrics", h.Metrics)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log.With().Str("transport", "admin").Logger(),
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("admin transport listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
