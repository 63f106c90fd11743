package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blockchat/blockchat/internal/auth"
	"github.com/blockchat/blockchat/internal/cache"
	"github.com/blockchat/blockchat/internal/events"
	"github.com/blockchat/blockchat/internal/flow"
	"github.com/blockchat/blockchat/internal/handler"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/middleware"
	"github.com/blockchat/blockchat/internal/repository"
	"github.com/blockchat/blockchat/internal/service"
	"github.com/blockchat/blockchat/internal/testutil"
)

type testApp struct {
	router  *chi.Mux
	store   *repository.MemoryStore
	metrics *metrics.PrometheusRecorder
}

type appSetup struct {
	cfg       RouterConfig
	publisher *events.Publisher
}

type appOption func(*appSetup)

func withLimiter(l middleware.RateLimiter, rps, burst int) appOption {
	return func(s *appSetup) {
		s.cfg.Limiter = l
		s.cfg.RateLimitEnabled = true
		s.cfg.RateLimitRPS = rps
		s.cfg.RateLimitBurst = burst
	}
}

func withMaxBody(n int64) appOption {
	return func(s *appSetup) { s.cfg.MaxBodySize = n }
}

func withEvents(p *events.Publisher) appOption {
	return func(s *appSetup) { s.publisher = p }
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	store := repository.NewMemory()
	if _, err := repository.InitStore(context.Background(), store); err != nil {
		t.Fatalf("InitStore failed: %v", err)
	}

	recorder := metrics.NewPrometheus()
	logger := discardLogger()
	svc := service.NewAuthService(store, auth.NewOpaqueIssuer(), flow.NoPacing, recorder)

	setup := appSetup{cfg: RouterConfig{
		Logger:         logger,
		Root:           handler.New(),
		Health:         handler.NewHealthHandler(store, nil),
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
		CORS:           middleware.DefaultCORSConfig(),
		IsDevelopment:  true,
		MaxBodySize:    1 << 16,
	}}
	for _, opt := range opts {
		opt(&setup)
	}

	cfg := setup.cfg
	if setup.publisher != nil {
		cfg.Auth = handler.NewAuthHandler(svc, logger, setup.publisher)
		cfg.Events = handler.NewEventsHandler(setup.publisher, logger)
	} else {
		cfg.Auth = handler.NewAuthHandler(svc, logger, nil)
	}

	return &testApp{router: NewRouter(cfg), store: store, metrics: recorder}
}

func (a *testApp) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRouter_DemoLogin(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"password123"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	out := decodeMap(t, rec)
	if out["success"] != true || out["message"] != "Login successful" {
		t.Errorf("unexpected body: %v", out)
	}
	if steps, _ := out["flowSteps"].([]any); len(steps) != 7 {
		t.Errorf("expected 7 flow steps, got %d", len(steps))
	}
	if app.store.SessionCount() != 1 {
		t.Errorf("expected one session, got %d", app.store.SessionCount())
	}
}

func TestRouter_RegisterThenLogin(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/api/register", `{"name":"Bob","email":"Bob@X.com","password":"secret1","confirm":"secret1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(http.MethodPost, "/api/register", `{"name":"Bob","email":"bob@x.com","password":"secret1","confirm":"secret1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	rec = app.do(http.MethodPost, "/api/login", `{"email":"bob@x.com","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_Fallbacks(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantError  string
	}{
		{"unknown path", http.MethodGet, "/api/nope", http.StatusNotFound, "Endpoint not found"},
		{"root", http.MethodGet, "/", http.StatusNotFound, "Endpoint not found"},
		{"get login", http.MethodGet, "/api/login", http.StatusMethodNotAllowed, "Method not allowed"},
		{"post health", http.MethodPost, "/api/health", http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeMap(t, rec)["error"]; got != tt.wantError {
				t.Errorf("error = %v, want %q", got, tt.wantError)
			}
		})
	}
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || decodeMap(t, rec)["status"] != "ok" {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.do(http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_Preflight(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(http.MethodOptions, "/api/login", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type",
	)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("Access-Control-Allow-Methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestRouter_BodyTooLarge(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, withMaxBody(32))
	rec := app.do(http.MethodPost, "/api/register",
		`{"name":"`+strings.Repeat("a", 64)+`","email":"a@b.co","password":"123456","confirm":"123456"}`)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rec.Code)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	_, url := testutil.NewMiniRedis(t)
	c, err := cache.New(context.Background(), url)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	app := newTestApp(t, withLimiter(c, 1, 2))
	body := `{"email":"user@example.com","password":"wrong"}`

	for i := 0; i < 2; i++ {
		if rec := app.do(http.MethodPost, "/api/login", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := app.do(http.MethodPost, "/api/login", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if got := decodeMap(t, rec)["error"]; got != "Too many requests" {
		t.Errorf("error = %v", got)
	}

	// Register keeps its own bucket.
	rec = app.do(http.MethodPost, "/api/register", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("register: expected 400, got %d", rec.Code)
	}

	// Health is never limited.
	if rec := app.do(http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.do(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"password123"}`)
	app.do(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"nope"}`)

	rec := app.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`blockchat_flows_total{flow="login",outcome="success"} 1`,
		`blockchat_flows_total{flow="login",outcome="failure"} 1`,
		`blockchat_stages_total{flow="login",status="error",step="5"} 1`,
		`blockchat_flow_duration_seconds_count{flow="login"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestRouter_EventFeed(t *testing.T) {
	t.Parallel()

	_, url := testutil.NewMiniRedis(t)
	c, err := cache.New(context.Background(), url)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	publisher := events.NewPublisher(c.Client(), discardLogger(), nil)
	app := newTestApp(t, withEvents(publisher))

	app.do(http.MethodPost, "/api/login", `{"email":"user@example.com","password":"password123"}`)
	app.do(http.MethodPost, "/api/register", `{"name":"A","email":"user@example.com","password":"123456","confirm":"123456"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := publisher.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rec := app.do(http.MethodGet, "/api/events?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handler.EventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp.Events))
	}

	byFlow := map[string]events.FlowEvent{}
	for _, ev := range resp.Events {
		byFlow[ev.Flow] = ev
	}
	if ev := byFlow["login"]; ev.Outcome != "success" || ev.Status != http.StatusOK {
		t.Errorf("unexpected login event %+v", ev)
	}
	if ev := byFlow["register"]; ev.Outcome != "failure" || ev.Status != http.StatusConflict || ev.FailedStep != 3 {
		t.Errorf("unexpected register event %+v", ev)
	}
	if strings.Contains(rec.Body.String(), "user@example.com") {
		t.Error("event feed leaks email addresses")
	}
}

func TestRouter_EventFeedDisabled(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	if rec := app.do(http.MethodGet, "/api/events", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 without a feed, got %d", rec.Code)
	}
}
