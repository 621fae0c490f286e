package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowStockThreshold is the quantity at or below which a product counts as running low.
const LowStockThreshold = 5

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   *time.Time      `json:"-"`
}

func (p *Product) Low() bool { return p.Quantity <= LowStockThreshold }

// Usage is one stock movement out of a product, kept as permanent history.
type Usage struct {
	ID              uuid.UUID  `json:"id"`
	ProductID       uuid.UUID  `json:"productId"`
	MedicalRecordID *uuid.UUID `json:"medicalRecordId,omitempty"`
	Quantity        int        `json:"quantity"`
	UsedAt          time.Time  `json:"usedAt"`
}
