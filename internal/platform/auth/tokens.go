package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccountType distinguishes staff users from tutors using the self-service portal.
type AccountType string

const (
	AccountUser  AccountType = "user"
	AccountTutor AccountType = "tutor"
)

const (
	accessAudience  = "pulsevet-access"
	refreshAudience = "pulsevet-refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims are carried by the short-lived bearer token.
type AccessClaims struct {
	jwt.RegisteredClaims
	AccountID string      `json:"id"`
	Type      AccountType `json:"type"`
	Role      string      `json:"role,omitempty"`
}

// RefreshClaims deliberately carry no role: it is re-read from the database on every refresh.
type RefreshClaims struct {
	jwt.RegisteredClaims
	AuthProfileID string `json:"authProfileId"`
}

// Identity is what an access token is issued for.
type Identity struct {
	AccountID uuid.UUID
	Type      AccountType
	Role      string
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type TokenConfig struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. Each kind
// has its own secret and audience so one can never be replayed as the other.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

func (i *TokenIssuer) AccessTTL() time.Duration { return i.cfg.AccessTTL }

// IssuePair signs a new access token for id and a refresh token bound to authProfileID.
func (i *TokenIssuer) IssuePair(id Identity, authProfileID uuid.UUID) (*TokenPair, error) {
	now := i.now().UTC()
	accessExp := now.Add(i.cfg.AccessTTL)
	refreshExp := now.Add(i.cfg.RefreshTTL)

	access := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.AccountID.String(),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{accessAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
		AccountID: id.AccountID.String(),
		Type:      id.Type,
		Role:      id.Role,
	}
	accessStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(i.cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   authProfileID.String(),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{refreshAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
		AuthProfileID: authProfileID.String(),
	}
	refreshStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(i.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessStr,
		RefreshToken:     refreshStr,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *TokenIssuer) parserOptions(audience string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}
	return opts
}

// ParseAccess verifies an access token and returns its claims.
func (i *TokenIssuer) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return i.cfg.AccessSecret, nil
	}, i.parserOptions(accessAudience)...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.AccountID); err != nil {
		return nil, fmt.Errorf("%w: bad account id", ErrInvalidToken)
	}
	if claims.Type != AccountUser && claims.Type != AccountTutor {
		return nil, fmt.Errorf("%w: bad account type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token's signature, audience and expiry.
func (i *TokenIssuer) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return i.cfg.RefreshSecret, nil
	}, i.parserOptions(refreshAudience)...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.AuthProfileID); err != nil {
		return nil, fmt.Errorf("%w: bad auth profile id", ErrInvalidToken)
	}
	return claims, nil
}

// HashToken returns the hex SHA-256 of a raw token. Only this digest is stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
