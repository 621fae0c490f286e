package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// LoadBillable locks the appointment row and reads what it bills.
	LoadBillable(ctx context.Context, appointmentID uuid.UUID) (*Billable, error)
	Create(ctx context.Context, inv *Invoice) error
	AddItem(ctx context.Context, it *Item) error
	SetTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status, paidAt *time.Time) error
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*Item, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error)
}
