package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetProfileByEmail(ctx context.Context, email string) (*AuthProfile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (*AuthProfile, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*AuthProfile, error)
	GetProfileByTutor(ctx context.Context, tutorID uuid.UUID) (*AuthProfile, error)
	CreateProfile(ctx context.Context, p *AuthProfile) error

	// SetRefreshHash overwrites whatever refresh token hash is stored.
	SetRefreshHash(ctx context.Context, profileID uuid.UUID, hash *string) error
	// SwapRefreshHash replaces oldHash with newHash only if oldHash is still
	// the stored value. It reports whether the swap happened.
	SwapRefreshHash(ctx context.Context, profileID uuid.UUID, oldHash, newHash string) (bool, error)

	GetStaff(ctx context.Context, userID uuid.UUID) (*StaffRecord, error)
	CreateStaff(ctx context.Context, s *StaffRecord) error
	// GetActiveTutor ignores soft-deleted tutors.
	GetActiveTutor(ctx context.Context, tutorID uuid.UUID) (*TutorRecord, error)
}
