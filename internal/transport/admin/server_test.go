package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/core"
)

func testRouter(t *testing.T) (*gin.Engine, *core.Dispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d := core.NewDispatcher(core.SessionConfig{SyncActiveWindow: time.Second, SyncRetryInterval: time.Second}, zerolog.Nop())
	metrics := core.NewIdleWatchdogMetrics()
	t.Cleanup(metrics.Stop)

	router := gin.New()
	h := NewHandlers(d, metrics, zerolog.Nop())
	router.GET("/health", h.Health)
	router.GET("/debug/sessions", h.ListSessions)
	router.GET("/debug/sessions/:type", h.ListSessionsByType)
	router.GET("/debug/metrics", h.Metrics)

	return router, d
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
}

func TestListSessionsReturnsEmptyArrayWhenNoneActive(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}

	var sessions []SessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %+v", sessions)
	}
}

func TestMetricsEndpointReportsZeroInitially(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var body map[string]int64
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["idle_disconnects_total"] != 0 {
		t.Fatalf("expected zero disconnects initially, got %+v", body)
	}
}
