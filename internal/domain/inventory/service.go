package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
)

// UsageObserver is told about every unit of stock that leaves the shelf.
type UsageObserver interface {
	StockConsumed(source string, units int)
}

const sourceMedicalRecord = "medical_record"

type Service struct {
	products ProductRepository
	tx       db.Transactor
	observer UsageObserver
}

func NewService(products ProductRepository, tx db.Transactor) *Service {
	return &Service{products: products, tx: tx}
}

// SetObserver attaches an optional UsageObserver to the service.
func (s *Service) SetObserver(o UsageObserver) {
	s.observer = o
}

func validateProduct(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.products.Create(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return notFound(s.products.Update(ctx, p))
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return notFound(s.products.SoftDelete(ctx, id))
}

func (s *Service) ListProducts(ctx context.Context, q string, lowOnly bool, limit, offset int) ([]*Product, int, error) {
	return s.products.List(ctx, q, lowOnly, limit, offset)
}

// Consume takes qty units of a product off the shelf for a medical record and
// records the usage. It joins the caller's transaction when there is one and
// returns the quantity left in stock.
func (s *Service) Consume(ctx context.Context, productID uuid.UUID, qty int, recordID uuid.UUID) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	var remaining int
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		remaining, err = s.products.Decrement(ctx, productID, qty)
		if err != nil {
			return notFound(err)
		}
		u := &Usage{ProductID: productID, Quantity: qty}
		if recordID != uuid.Nil {
			u.MedicalRecordID = &recordID
		}
		return s.products.RecordUsage(ctx, u)
	})
	if err != nil {
		return 0, err
	}
	if s.observer != nil {
		s.observer.StockConsumed(sourceMedicalRecord, qty)
	}
	return remaining, nil
}

func (s *Service) ListUsage(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*Usage, int, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, 0, notFound(err)
	}
	return s.products.ListUsage(ctx, productID, limit, offset)
}
