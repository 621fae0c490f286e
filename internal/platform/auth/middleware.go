package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID uuid.UUID
	Type      AccountType
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

func (p *Principal) IsStaff() bool { return p.Type == AccountUser }

// RevocationChecker reports whether an access token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticate reads "Authorization: Bearer <access token>" and puts the
// Principal on the request context. A request without the header passes
// through anonymously; a malformed, invalid or revoked token is rejected with
// 401. Routes that need a caller add RequireAuth, RequirePermission,
// RequireRole or RequireAccountType. revoked may be nil.
func Authenticate(issuer *TokenIssuer, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := issuer.ParseAccess(strings.TrimSpace(tokenStr))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			if revoked != nil && claims.ID != "" {
				isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
				if err != nil {
					return fmt.Errorf("check token revocation: %w", err)
				}
				if isRevoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			p := &Principal{
				AccountID: uuid.MustParse(claims.AccountID),
				Type:      claims.Type,
				Role:      claims.Role,
				TokenID:   claims.ID,
			}
			if claims.ExpiresAt != nil {
				p.ExpiresAt = claims.ExpiresAt.Time
			}

			// Read by the request logger and the rate limiter.
			c.Set("user_id", claims.AccountID)
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			return next(c)
		}
	}
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			return next(c)
		}
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.AccountID
	}
	return uuid.Nil
}
