package tutor

import (
	"context"

	"github.com/google/uuid"
)

// TutorRepository never returns soft-deleted tutors.
type TutorRepository interface {
	Create(ctx context.Context, t *Tutor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tutor, error)
	Update(ctx context.Context, t *Tutor) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, q string, limit, offset int) ([]*Tutor, int, error)
}

// PetRepository never returns soft-deleted pets or pets of deleted tutors.
type PetRepository interface {
	Create(ctx context.Context, p *Pet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Pet, error)
	Update(ctx context.Context, p *Pet) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SoftDeleteByTutor(ctx context.Context, tutorID uuid.UUID) (int64, error)
	List(ctx context.Context, f PetFilter, limit, offset int) ([]*Pet, int, error)
}
