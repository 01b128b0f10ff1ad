package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mikhail-2byte/Dnd-version2/internal/cache"
	"github.com/Mikhail-2byte/Dnd-version2/internal/config"
	"github.com/Mikhail-2byte/Dnd-version2/internal/db"
	"github.com/Mikhail-2byte/Dnd-version2/internal/service"
	"github.com/Mikhail-2byte/Dnd-version2/internal/ws"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{Port: "0", DatabaseDSN: "", JWTSecret: "secret", Env: "dev", AccessTokenTTLMinutes: 15, RefreshTokenTTLDays: 7, StoreTimeout: 5 * time.Second}
	gdb, err := db.Connect("host=localhost user=postgres password=postgres dbname=dnd port=5432 sslmode=disable TimeZone=UTC")
	if err != nil {
		t.Skipf("skip: db not available: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}
	rdb, err := cache.Dial("redis://localhost:6379/0")
	if err != nil {
		t.Skipf("skip: bad redis url: %v", err)
	}
	coord := ws.NewCoordinator(service.NewGameService(gdb), cache.New(rdb), cfg.StoreTimeout)
	return SetupRouter(cfg, gdb, coord)
}

func TestHealthz(t *testing.T) {
	engine := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	engine := testRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/games"},
		{http.MethodGet, "/api/v1/characters"},
		{http.MethodPost, "/api/v1/dice/roll"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", p.method, p.path, w.Code)
		}
	}
}
