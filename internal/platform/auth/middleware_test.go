package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(TokenConfig{
		Issuer:        "pulsevet-test",
		AccessSecret:  []byte("test-access-secret-for-unit-tests"),
		RefreshSecret: []byte("test-refresh-secret-for-unit-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

func runJWT(t *testing.T, issuer *TokenIssuer, revoked RevocationChecker, header string) (*Principal, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Principal
	handler := func(c echo.Context) error {
		got, _ = PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}
	err := Authenticate(issuer, revoked)(RequireAuth()(handler))(c)
	return got, err
}

func assertHTTPCode(t *testing.T, err error, code int) {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	_, err := runJWT(t, newTestIssuer(), nil, "")
	assertHTTPCode(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_AnonymousPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		called = true
		if _, ok := PrincipalFromContext(c.Request().Context()); ok {
			t.Error("expected no principal")
		}
		if c.Get("user_id") != nil {
			t.Error("expected no user_id")
		}
		return c.NoContent(http.StatusOK)
	}
	if err := Authenticate(newTestIssuer(), nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected the handler to run")
	}
}

func TestAuthenticate_SetsUserID(t *testing.T) {
	issuer := newTestIssuer()
	id := Identity{AccountID: uuid.New(), Type: AccountTutor}
	pair, _ := issuer.IssuePair(id, uuid.New())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	c := e.NewContext(req, httptest.NewRecorder())

	var got any
	handler := func(c echo.Context) error {
		got = c.Get("user_id")
		return nil
	}
	if err := Authenticate(issuer, nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id.AccountID.String() {
		t.Errorf("expected user_id %s, got %v", id.AccountID, got)
	}
}

func TestAuthenticate_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runJWT(t, newTestIssuer(), nil, tt.header)
			assertHTTPCode(t, err, http.StatusUnauthorized)
		})
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	issuer := newTestIssuer()
	id := Identity{AccountID: uuid.New(), Type: AccountUser, Role: RoleVeterinario}
	pair, err := issuer.IssuePair(id, uuid.New())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := runJWT(t, issuer, nil, "Bearer "+pair.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected principal in context")
	}
	if p.AccountID != id.AccountID || p.Type != AccountUser || p.Role != RoleVeterinario {
		t.Errorf("unexpected principal: %+v", p)
	}
	if p.TokenID == "" {
		t.Error("expected token id")
	}
}

func TestAuthenticate_RefreshTokenRejected(t *testing.T) {
	issuer := newTestIssuer()
	pair, _ := issuer.IssuePair(Identity{AccountID: uuid.New(), Type: AccountTutor}, uuid.New())

	_, err := runJWT(t, issuer, nil, "Bearer "+pair.RefreshToken)
	assertHTTPCode(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_RevokedToken(t *testing.T) {
	issuer := newTestIssuer()
	pair, _ := issuer.IssuePair(Identity{AccountID: uuid.New(), Type: AccountTutor}, uuid.New())
	claims, err := issuer.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	store := &stubRevocations{revoked: map[string]bool{claims.ID: true}}
	_, err = runJWT(t, issuer, store, "Bearer "+pair.AccessToken)
	assertHTTPCode(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_RevocationLookupFails(t *testing.T) {
	issuer := newTestIssuer()
	pair, _ := issuer.IssuePair(Identity{AccountID: uuid.New(), Type: AccountTutor}, uuid.New())

	store := &stubRevocations{err: errors.New("redis down")}
	_, err := runJWT(t, issuer, store, "Bearer "+pair.AccessToken)
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		t.Errorf("expected internal error, got HTTP %d", httpErr.Code)
	}
}

func TestAccountIDFromContext(t *testing.T) {
	if got := AccountIDFromContext(context.Background()); got != uuid.Nil {
		t.Errorf("expected nil uuid, got %s", got)
	}
	id := uuid.New()
	ctx := WithPrincipal(context.Background(), &Principal{AccountID: id, Type: AccountUser})
	if got := AccountIDFromContext(ctx); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}
