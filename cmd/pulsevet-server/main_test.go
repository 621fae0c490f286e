package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bugijo/eumaeus-system-sub002/internal/config"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/events"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/telemetry"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                      "test",
		CORSOrigins:              []string{"http://localhost:5173"},
		JWTIssuer:                "pulsevet-test",
		JWTAccessSecret:          "main-test-access-secret",
		JWTRefreshSecret:         "main-test-refresh-secret",
		AccessTokenTTL:           15 * time.Minute,
		RefreshTokenTTL:          time.Hour,
		BcryptCost:               4,
		RateLimitRPS:             1000,
		RateLimitBurst:           1000,
		MetricsEnabled:           true,
		MetricsNamespace:         "pulsevet_test",
		DefaultConsultationPrice: "100.00",
	}
}

type testServer struct {
	http.Handler
	cfg     *config.Config
	revoked *auth.MemoryRevocationStore
}

// newTestServer builds the real router without a database. Only requests that
// are rejected before reaching a repository are safe to send.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, testConfig(), nil)
}

func newTestServerWith(t *testing.T, cfg *config.Config, rdb *redis.Client) *testServer {
	t.Helper()
	revoked := auth.NewMemoryRevocationStore(time.Hour)
	t.Cleanup(revoked.Close)

	e := newServer(&deps{
		cfg:         cfg,
		logger:      zerolog.Nop(),
		rdb:         rdb,
		publisher:   events.Nop{},
		revocations: revoked,
		metrics:     telemetry.New(cfg.MetricsNamespace),
	})
	return &testServer{Handler: e, cfg: cfg, revoked: revoked}
}

func (s *testServer) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	pair, err := newTokenIssuer(s.cfg).IssuePair(id, uuid.New())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair.AccessToken
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestRoutes_AccessControl(t *testing.T) {
	s := newTestServer(t)
	staff := s.token(t, auth.Identity{AccountID: uuid.New(), Type: auth.AccountUser, Role: auth.RoleFuncionario})
	tutor := s.token(t, auth.Identity{AccountID: uuid.New(), Type: auth.AccountTutor})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		code   int
	}{
		{"staff route without token", http.MethodGet, "/api/tutors", "", http.StatusUnauthorized},
		{"staff route with garbage token", http.MethodGet, "/api/tutors", "garbage", http.StatusUnauthorized},
		{"staff route with tutor token", http.MethodGet, "/api/tutors", tutor, http.StatusForbidden},
		{"invoice route lacks permission", http.MethodGet, "/api/invoices", staff, http.StatusForbidden},
		{"staff provisioning needs DONO", http.MethodPost, "/api/staff", staff, http.StatusForbidden},
		{"portal with staff token", http.MethodGet, "/api/portal/my-pets", staff, http.StatusForbidden},
		{"portal without token", http.MethodGet, "/api/portal/my-pets", "", http.StatusUnauthorized},
		{"me without token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, "")
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("expected {\"error\": ...} body, got %s", rec.Body.String())
			}
		})
	}
}

func TestRoutes_RevokedToken(t *testing.T) {
	s := newTestServer(t)
	id := auth.Identity{AccountID: uuid.New(), Type: auth.AccountUser, Role: auth.RoleDono}
	token := s.token(t, id)

	claims, err := newTokenIssuer(s.cfg).ParseAccess(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := s.revoked.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if rec := s.do(http.MethodGet, "/api/tutors", token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRoutes_UnknownPaths(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown path, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/auth/login", "", "")
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 404 or 405 for GET on a POST route, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimit_BucketPerAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	for name, client := range map[string]*redis.Client{"memory": nil, "redis": rdb} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RateLimitRPS = 0.001
			cfg.RateLimitBurst = 2
			s := newTestServerWith(t, cfg, client)

			// Both accounts call from the same address; the route answers 403
			// without touching the database.
			a := s.token(t, auth.Identity{AccountID: uuid.New(), Type: auth.AccountUser, Role: auth.RoleFuncionario})
			b := s.token(t, auth.Identity{AccountID: uuid.New(), Type: auth.AccountUser, Role: auth.RoleFuncionario})

			for i := 0; i < 2; i++ {
				if rec := s.do(http.MethodGet, "/api/invoices", a, ""); rec.Code != http.StatusForbidden {
					t.Fatalf("account a request %d: expected 403, got %d", i+1, rec.Code)
				}
			}

			rec := s.do(http.MethodGet, "/api/invoices", a, "")
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected account a to be throttled, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header")
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body) != 1 || body["error"] != "rate limit exceeded" {
				t.Errorf("expected {\"error\": \"rate limit exceeded\"}, got %s", rec.Body.String())
			}

			if rec := s.do(http.MethodGet, "/api/invoices", b, ""); rec.Code != http.StatusForbidden {
				t.Errorf("expected account b to have its own bucket, got %d", rec.Code)
			}
			if rec := s.do(http.MethodGet, "/api/invoices", "", ""); rec.Code != http.StatusUnauthorized {
				t.Errorf("expected anonymous caller to have its own bucket, got %d", rec.Code)
			}
		})
	}
}

func TestLogin_RejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodPost, "/api/auth/login", "", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"not-a-jwt"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for an unparseable refresh token, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/health", "", "")

	rec := s.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pulsevet_test_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "identity", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "clinic"},
	})

	out := buf.String()
	for _, want := range []string{"schema: public", "applied", "2026-01-02 03:04:05", "pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
