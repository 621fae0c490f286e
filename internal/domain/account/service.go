package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshNotFound     = errors.New("refresh token not recognized")
	ErrProfileNotLinked    = errors.New("login is not linked to a user or tutor")
	ErrRoleMissing         = errors.New("user has no role assigned")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTutorNotFound       = errors.New("tutor not found")
	ErrEmailTaken          = errors.New("email already in use")
	ErrPortalAccessExists  = errors.New("tutor already has portal access")
	ErrValidation          = errors.New("validation failed")
)

const (
	emailKeyConstraint = "auth_profiles_email_key"
	tutorKeyConstraint = "auth_profiles_tutor_id_key"
)

// Revoker invalidates access tokens before they expire.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// AuthObserver is told the outcome of every login and refresh.
type AuthObserver interface {
	Login(accountType, outcome string)
	Refresh(outcome string)
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	issuer   *auth.TokenIssuer
	hasher   *auth.PasswordHasher
	revoker  Revoker
	observer AuthObserver
}

func NewService(repo Repository, tx db.Transactor, issuer *auth.TokenIssuer, hasher *auth.PasswordHasher, revoker Revoker) *Service {
	return &Service{repo: repo, tx: tx, issuer: issuer, hasher: hasher, revoker: revoker}
}

// SetObserver attaches an optional AuthObserver to the service.
func (s *Service) SetObserver(o AuthObserver) {
	s.observer = o
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrProfileNotLinked):
		return "not_linked"
	case errors.Is(err, ErrRoleMissing):
		return "role_missing"
	case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrRefreshNotFound):
		return "rejected"
	}
	return "error"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resolve decides which kind of account owns p, reading the current state of
// the database.
func (s *Service) resolve(ctx context.Context, p *AuthProfile) (Account, error) {
	switch {
	case p.UserID != nil:
		u, err := s.repo.GetStaff(ctx, *p.UserID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, ErrProfileNotLinked
			}
			return nil, err
		}
		if u.Role == nil || !auth.ValidRole(*u.Role) {
			return nil, ErrRoleMissing
		}
		return &StaffAccount{UserID: u.ID, Name: u.Name, Role: *u.Role}, nil
	case p.TutorID != nil:
		t, err := s.repo.GetActiveTutor(ctx, *p.TutorID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, ErrProfileNotLinked
			}
			return nil, err
		}
		return &TutorAccount{TutorID: t.ID, Name: t.Name}, nil
	}
	return nil, ErrProfileNotLinked
}

// Login exchanges credentials for a token pair. The hash of the new refresh
// token replaces whatever was stored, which signs out any earlier session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	sess, kind, err := s.login(ctx, normalizeEmail(email), password)
	if s.observer != nil {
		s.observer.Login(kind, outcomeOf(err))
	}
	return sess, err
}

func (s *Service) login(ctx context.Context, email, password string) (*Session, string, error) {
	p, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, "unknown", ErrInvalidCredentials
		}
		return nil, "unknown", err
	}
	if !s.hasher.Verify(p.PasswordHash, password) {
		return nil, "unknown", ErrInvalidCredentials
	}

	acc, err := s.resolve(ctx, p)
	if err != nil {
		return nil, "unknown", err
	}
	kind := string(acc.Identity().Type)

	pair, err := s.issuer.IssuePair(acc.Identity(), p.ID)
	if err != nil {
		return nil, kind, err
	}
	hash := auth.HashToken(pair.RefreshToken)
	if err := s.repo.SetRefreshHash(ctx, p.ID, &hash); err != nil {
		return nil, kind, fmt.Errorf("store refresh token: %w", err)
	}
	return &Session{TokenPair: *pair, User: publicView(acc, p.Email)}, kind, nil
}

// Refresh rotates a refresh token. Each refresh token can be used once: the
// stored hash is swapped only if it still matches the presented token, so of
// two concurrent refreshes with the same token exactly one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	sess, err := s.refresh(ctx, refreshToken)
	if s.observer != nil {
		s.observer.Refresh(outcomeOf(err))
	}
	return sess, err
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	profileID, err := uuid.Parse(claims.AuthProfileID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	p, err := s.repo.GetProfileByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrRefreshNotFound
		}
		return nil, err
	}
	presented := auth.HashToken(refreshToken)
	if p.RefreshTokenHash == nil || subtle.ConstantTimeCompare([]byte(*p.RefreshTokenHash), []byte(presented)) != 1 {
		return nil, ErrRefreshNotFound
	}

	acc, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuer.IssuePair(acc.Identity(), p.ID)
	if err != nil {
		return nil, err
	}
	swapped, err := s.repo.SwapRefreshHash(ctx, p.ID, presented, auth.HashToken(pair.RefreshToken))
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		return nil, ErrRefreshNotFound
	}
	return &Session{TokenPair: *pair, User: publicView(acc, p.Email)}, nil
}

func (s *Service) profileOf(ctx context.Context, p *auth.Principal) (*AuthProfile, error) {
	var (
		prof *AuthProfile
		err  error
	)
	if p.Type == auth.AccountTutor {
		prof, err = s.repo.GetProfileByTutor(ctx, p.AccountID)
	} else {
		prof, err = s.repo.GetProfileByUser(ctx, p.AccountID)
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return prof, err
}

// Logout forgets the stored refresh token and revokes the access token the
// caller presented until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, p *auth.Principal) error {
	prof, err := s.profileOf(ctx, p)
	switch {
	case err == nil:
		if err := s.repo.SetRefreshHash(ctx, prof.ID, nil); err != nil {
			return err
		}
	case !errors.Is(err, ErrAccountNotFound):
		return err
	}
	if s.revoker != nil && p.TokenID != "" {
		return s.revoker.Revoke(ctx, p.TokenID, p.ExpiresAt)
	}
	return nil
}

// Me returns the caller's public view as it is now, not as the token recorded it.
func (s *Service) Me(ctx context.Context, p *auth.Principal) (*User, error) {
	prof, err := s.profileOf(ctx, p)
	if err != nil {
		return nil, err
	}
	acc, err := s.resolve(ctx, prof)
	if err != nil {
		return nil, err
	}
	return publicView(acc, prof.Email), nil
}

func validateCredentials(email, password string) (string, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return email, nil
}

// CreateStaff provisions a staff user together with their login.
func (s *Service) CreateStaff(ctx context.Context, in CreateStaffInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !auth.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	email, err := validateCredentials(in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	staff := &StaffRecord{Name: name, Role: &role}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateStaff(ctx, staff); err != nil {
			return err
		}
		err := s.repo.CreateProfile(ctx, &AuthProfile{Email: email, PasswordHash: hash, UserID: &staff.ID})
		if db.IsUniqueViolation(err, emailKeyConstraint) {
			return ErrEmailTaken
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return publicView(&StaffAccount{UserID: staff.ID, Name: staff.Name, Role: role}, email), nil
}

// GrantPortalAccess gives an active tutor a login for the self-service portal.
func (s *Service) GrantPortalAccess(ctx context.Context, tutorID uuid.UUID, in PortalAccessInput) (*User, error) {
	email, err := validateCredentials(in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var t *TutorRecord
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetActiveTutor(ctx, tutorID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrTutorNotFound
			}
			return err
		}
		t = rec
		if _, err := s.repo.GetProfileByTutor(ctx, tutorID); err == nil {
			return ErrPortalAccessExists
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		err = s.repo.CreateProfile(ctx, &AuthProfile{Email: email, PasswordHash: hash, TutorID: &t.ID})
		switch {
		case db.IsUniqueViolation(err, emailKeyConstraint):
			return ErrEmailTaken
		case db.IsUniqueViolation(err, tutorKeyConstraint):
			return ErrPortalAccessExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return publicView(&TutorAccount{TutorID: t.ID, Name: t.Name}, email), nil
}
