package clinical

import (
	"context"

	"github.com/google/uuid"
)

type RecordRepository interface {
	// LockVisit loads the appointment with a row lock held until the
	// surrounding transaction ends, and whether it has been invoiced.
	LockVisit(ctx context.Context, appointmentID uuid.UUID) (*visit, error)
	CompleteVisit(ctx context.Context, appointmentID uuid.UUID) error
	ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	Create(ctx context.Context, r *MedicalRecord) error
	AddProduct(ctx context.Context, rp *RecordProduct) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error)
	ListProducts(ctx context.Context, recordID uuid.UUID) ([]*RecordProduct, error)
}
