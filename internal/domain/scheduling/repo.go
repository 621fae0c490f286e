package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate locks the appointment row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	AddService(ctx context.Context, bs *BookedService) error
	ListServices(ctx context.Context, appointmentID uuid.UUID) ([]*BookedService, error)
}

type CatalogRepository interface {
	Create(ctx context.Context, cs *ClinicService) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicService, error)
	Update(ctx context.Context, cs *ClinicService) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*ClinicService, int, error)
}
