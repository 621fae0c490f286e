package tutor

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

var (
	ErrTutorNotFound = errors.New("tutor not found")
	ErrPetNotFound   = errors.New("pet not found")
	ErrValidation    = errors.New("validation failed")
)

type Service struct {
	tutors TutorRepository
	pets   PetRepository
	tx     db.Transactor
}

func NewService(tutors TutorRepository, pets PetRepository, tx db.Transactor) *Service {
	return &Service{tutors: tutors, pets: pets, tx: tx}
}

// -- Tutor --

func validateTutor(t *Tutor) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if t.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*t.Email))
		if e == "" {
			t.Email = nil
		} else if _, err := mail.ParseAddress(e); err != nil {
			return fmt.Errorf("%w: invalid email", ErrValidation)
		} else {
			t.Email = &e
		}
	}
	return nil
}

func (s *Service) CreateTutor(ctx context.Context, t *Tutor) error {
	if err := validateTutor(t); err != nil {
		return err
	}
	return s.tutors.Create(ctx, t)
}

func (s *Service) GetTutor(ctx context.Context, id uuid.UUID) (*Tutor, error) {
	t, err := s.tutors.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrTutorNotFound
	}
	return t, err
}

func (s *Service) UpdateTutor(ctx context.Context, t *Tutor) error {
	if err := validateTutor(t); err != nil {
		return err
	}
	err := s.tutors.Update(ctx, t)
	if errors.Is(err, db.ErrNotFound) {
		return ErrTutorNotFound
	}
	return err
}

// DeleteTutor soft-deletes the tutor and all of their pets atomically.
func (s *Service) DeleteTutor(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tutors.SoftDelete(ctx, id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrTutorNotFound
			}
			return err
		}
		_, err := s.pets.SoftDeleteByTutor(ctx, id)
		return err
	})
}

func (s *Service) SearchTutors(ctx context.Context, q string, limit, offset int) ([]*Tutor, int, error) {
	return s.tutors.Search(ctx, q, limit, offset)
}

// -- Pet --

func validatePet(p *Pet) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Species = strings.TrimSpace(p.Species)
	if p.TutorID == uuid.Nil {
		return fmt.Errorf("%w: tutorId is required", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.Species == "" {
		return fmt.Errorf("%w: species is required", ErrValidation)
	}
	if p.WeightKg.Valid && !p.WeightKg.Decimal.IsPositive() {
		return fmt.Errorf("%w: weightKg must be positive", ErrValidation)
	}
	return nil
}

func (s *Service) requireActiveTutor(ctx context.Context, id uuid.UUID) error {
	_, err := s.tutors.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return ErrTutorNotFound
	}
	return err
}

func (s *Service) CreatePet(ctx context.Context, p *Pet) error {
	if err := validatePet(p); err != nil {
		return err
	}
	if err := s.requireActiveTutor(ctx, p.TutorID); err != nil {
		return err
	}
	return s.pets.Create(ctx, p)
}

func (s *Service) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	p, err := s.pets.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrPetNotFound
	}
	return p, err
}

func (s *Service) UpdatePet(ctx context.Context, p *Pet) error {
	if err := validatePet(p); err != nil {
		return err
	}
	if err := s.requireActiveTutor(ctx, p.TutorID); err != nil {
		return err
	}
	err := s.pets.Update(ctx, p)
	if errors.Is(err, db.ErrNotFound) {
		return ErrPetNotFound
	}
	return err
}

func (s *Service) DeletePet(ctx context.Context, id uuid.UUID) error {
	err := s.pets.SoftDelete(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return ErrPetNotFound
	}
	return err
}

func (s *Service) ListPets(ctx context.Context, f PetFilter, limit, offset int) ([]*Pet, int, error) {
	return s.pets.List(ctx, f, limit, offset)
}

// ListPetsByTutor returns ErrTutorNotFound for unknown or deleted tutors.
func (s *Service) ListPetsByTutor(ctx context.Context, tutorID uuid.UUID, limit, offset int) ([]*Pet, int, error) {
	if err := s.requireActiveTutor(ctx, tutorID); err != nil {
		return nil, 0, err
	}
	return s.pets.List(ctx, PetFilter{TutorID: &tutorID}, limit, offset)
}
