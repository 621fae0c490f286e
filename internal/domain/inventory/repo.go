package inventory

import (
	"context"

	"github.com/google/uuid"
)

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	Update(ctx context.Context, p *Product) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q string, lowOnly bool, limit, offset int) ([]*Product, int, error)
	// Decrement subtracts qty only when enough stock is on hand and returns
	// what is left. It returns ErrInsufficientStock otherwise.
	Decrement(ctx context.Context, id uuid.UUID, qty int) (int, error)
	RecordUsage(ctx context.Context, u *Usage) error
	ListUsage(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*Usage, int, error)
}
