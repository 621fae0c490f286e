package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an invoice may move from one status to another.
// PAID and CANCELLED are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FallbackDescription names the single item billed when a visit has nothing else to bill.
const FallbackDescription = "Veterinary Consultation"

type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	AppointmentID uuid.UUID       `json:"appointmentId"`
	Status        Status          `json:"status"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	IssuedAt      time.Time       `json:"issuedAt"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Items         []*Item         `json:"items,omitempty"`
	Appointment   *Appointment    `json:"appointment,omitempty"`
	Pet           *Pet            `json:"pet,omitempty"`
	Tutor         *Tutor          `json:"tutor,omitempty"`
}

type Item struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type Appointment struct {
	ID          uuid.UUID `json:"id"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      string    `json:"status"`
}

type Pet struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Species string    `json:"species"`
}

type Tutor struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

// Billable is everything an invoice is derived from, read under the
// appointment's row lock.
type Billable struct {
	Appointment Appointment
	Pet         Pet
	Tutor       Tutor
	HasInvoice  bool
	Services    []BilledService
	Products    []BilledProduct
}

type BilledService struct {
	Name  string
	Price decimal.Decimal
}

type BilledProduct struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Filter struct {
	Status  Status
	TutorID *uuid.UUID
}

// BuildItems turns a billable visit into ordered invoice lines: services
// first, then consumed products. A visit with neither is billed one
// consultation at fallbackPrice.
func BuildItems(b *Billable, fallbackPrice decimal.Decimal) []*Item {
	var items []*Item
	add := func(desc string, qty int, unit decimal.Decimal) {
		items = append(items, &Item{
			Position:    len(items) + 1,
			Description: desc,
			Quantity:    qty,
			UnitPrice:   unit,
			TotalPrice:  unit.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	for _, s := range b.Services {
		add(s.Name, 1, s.Price)
	}
	for _, p := range b.Products {
		add(p.Name, p.Quantity, p.UnitPrice)
	}
	if len(items) == 0 {
		add(FallbackDescription, 1, fallbackPrice)
	}
	return items
}

func Total(items []*Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}
