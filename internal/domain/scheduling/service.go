package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/domain/tutor"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPetNotFound         = errors.New("pet not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrServiceInactive     = errors.New("service is inactive")
	ErrDuplicateService    = errors.New("service name already exists")
	ErrAppointmentClosed   = errors.New("appointment is completed or cancelled")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrValidation          = errors.New("validation failed")
)

// PetFinder resolves active pets. *tutor.Service satisfies it.
type PetFinder interface {
	GetPet(ctx context.Context, id uuid.UUID) (*tutor.Pet, error)
}

type Service struct {
	appointments AppointmentRepository
	catalog      CatalogRepository
	pets         PetFinder
	tx           db.Transactor
}

func NewService(appts AppointmentRepository, catalog CatalogRepository, pets PetFinder, tx db.Transactor) *Service {
	return &Service{appointments: appts, catalog: catalog, pets: pets, tx: tx}
}

// -- Appointment --

// CreateAppointment books a visit for an active pet. The tutor is always taken
// from the pet, never from the request.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PetID == uuid.Nil {
		return fmt.Errorf("%w: petId is required", ErrValidation)
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduledAt is required", ErrValidation)
	}
	pet, err := s.pets.GetPet(ctx, a.PetID)
	if err != nil {
		if errors.Is(err, tutor.ErrPetNotFound) {
			return ErrPetNotFound
		}
		return err
	}
	a.TutorID = pet.TutorID
	a.Status = StatusScheduled
	a.Services = nil
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if a.Services, err = s.appointments.ListServices(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, fmt.Errorf("%w: from must be before to", ErrValidation)
	}
	return s.appointments.List(ctx, f, limit, offset)
}

// UpdateStatus moves an appointment through its lifecycle. Setting the current
// status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		out = a
		if a.Status == status {
			return nil
		}
		if !CanTransition(a.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
		}
		if err := s.appointments.SetStatus(ctx, id, status); err != nil {
			return err
		}
		a.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddService attaches a catalog service to an open appointment, freezing the
// current catalog price on the booking.
func (s *Service) AddService(ctx context.Context, appointmentID, serviceID uuid.UUID) (*BookedService, error) {
	if serviceID == uuid.Nil {
		return nil, fmt.Errorf("%w: serviceId is required", ErrValidation)
	}
	var bs *BookedService
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if a.Status.Terminal() {
			return ErrAppointmentClosed
		}
		cs, err := s.catalog.GetByID(ctx, serviceID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrServiceNotFound
			}
			return err
		}
		if cs.Active != nil && !*cs.Active {
			return ErrServiceInactive
		}
		bs = &BookedService{AppointmentID: a.ID, ServiceID: cs.ID, Name: cs.Name, Price: cs.Price}
		return s.appointments.AddService(ctx, bs)
	})
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// -- Catalog --

func validateClinicService(cs *ClinicService) error {
	cs.Name = strings.TrimSpace(cs.Name)
	if cs.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if cs.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if cs.Active == nil {
		active := true
		cs.Active = &active
	}
	return nil
}

func (s *Service) CreateClinicService(ctx context.Context, cs *ClinicService) error {
	if err := validateClinicService(cs); err != nil {
		return err
	}
	if err := s.catalog.Create(ctx, cs); err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrDuplicateService
		}
		return err
	}
	return nil
}

func (s *Service) UpdateClinicService(ctx context.Context, cs *ClinicService) error {
	if err := validateClinicService(cs); err != nil {
		return err
	}
	err := s.catalog.Update(ctx, cs)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrServiceNotFound
	case db.IsUniqueViolation(err, ""):
		return ErrDuplicateService
	}
	return err
}

func (s *Service) ListClinicServices(ctx context.Context, activeOnly bool, limit, offset int) ([]*ClinicService, int, error) {
	return s.catalog.List(ctx, activeOnly, limit, offset)
}
