// Package portal serves a tutor's own pets, appointments and invoices. Every
// lookup is scoped to the authenticated tutor; records owned by someone else
// are reported as not found.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/domain/billing"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/scheduling"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/tutor"
)

var (
	ErrPetNotFound         = errors.New("pet not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNotCancellable      = errors.New("only scheduled or confirmed appointments can be cancelled")
	ErrValidation          = errors.New("validation failed")
)

type PetReader interface {
	GetPet(ctx context.Context, id uuid.UUID) (*tutor.Pet, error)
	ListPetsByTutor(ctx context.Context, tutorID uuid.UUID, limit, offset int) ([]*tutor.Pet, int, error)
}

type AppointmentBook interface {
	CreateAppointment(ctx context.Context, a *scheduling.Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	ListAppointments(ctx context.Context, f scheduling.AppointmentFilter, limit, offset int) ([]*scheduling.Appointment, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status scheduling.Status) (*scheduling.Appointment, error)
}

type InvoiceReader interface {
	ListByTutor(ctx context.Context, tutorID uuid.UUID, limit, offset int) ([]*billing.Invoice, int, error)
}

type Service struct {
	pets     PetReader
	appts    AppointmentBook
	invoices InvoiceReader
}

func NewService(pets PetReader, appts AppointmentBook, invoices InvoiceReader) *Service {
	return &Service{pets: pets, appts: appts, invoices: invoices}
}

// BookingRequest is what a tutor may set when booking; status and tutor are
// decided by the server.
type BookingRequest struct {
	PetID       uuid.UUID `json:"petId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Notes       *string   `json:"notes,omitempty"`
}

func (s *Service) MyPets(ctx context.Context, tutorID uuid.UUID, limit, offset int) ([]*tutor.Pet, int, error) {
	return s.pets.ListPetsByTutor(ctx, tutorID, limit, offset)
}

func (s *Service) MyAppointments(ctx context.Context, tutorID uuid.UUID, status scheduling.Status, limit, offset int) ([]*scheduling.Appointment, int, error) {
	items, total, err := s.appts.ListAppointments(ctx, scheduling.AppointmentFilter{Status: status, TutorID: &tutorID}, limit, offset)
	if errors.Is(err, scheduling.ErrValidation) {
		return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return items, total, err
}

func (s *Service) MyAppointment(ctx context.Context, tutorID, id uuid.UUID) (*scheduling.Appointment, error) {
	a, err := s.appts.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, scheduling.ErrAppointmentNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if a.TutorID != tutorID {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}

// Book schedules a visit for one of the tutor's own pets.
func (s *Service) Book(ctx context.Context, tutorID uuid.UUID, req BookingRequest) (*scheduling.Appointment, error) {
	if req.PetID == uuid.Nil {
		return nil, fmt.Errorf("%w: petId is required", ErrValidation)
	}
	if req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduledAt is required", ErrValidation)
	}
	pet, err := s.pets.GetPet(ctx, req.PetID)
	if err != nil {
		if errors.Is(err, tutor.ErrPetNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	if pet.TutorID != tutorID {
		return nil, ErrPetNotFound
	}

	a := &scheduling.Appointment{PetID: pet.ID, ScheduledAt: req.ScheduledAt, Notes: req.Notes}
	if err := s.appts.CreateAppointment(ctx, a); err != nil {
		switch {
		case errors.Is(err, scheduling.ErrPetNotFound):
			return nil, ErrPetNotFound
		case errors.Is(err, scheduling.ErrValidation):
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}
	return a, nil
}

// Cancel cancels one of the tutor's own appointments that has not happened yet.
func (s *Service) Cancel(ctx context.Context, tutorID, id uuid.UUID) (*scheduling.Appointment, error) {
	a, err := s.MyAppointment(ctx, tutorID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != scheduling.StatusScheduled && a.Status != scheduling.StatusConfirmed {
		return nil, ErrNotCancellable
	}
	a, err = s.appts.UpdateStatus(ctx, id, scheduling.StatusCancelled)
	if errors.Is(err, scheduling.ErrInvalidTransition) {
		return nil, ErrNotCancellable
	}
	return a, err
}

func (s *Service) MyInvoices(ctx context.Context, tutorID uuid.UUID, limit, offset int) ([]*billing.Invoice, int, error) {
	return s.invoices.ListByTutor(ctx, tutorID, limit, offset)
}
