package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/events"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceNotAllowed    = errors.New("invoices can only be created for completed appointments")
	ErrInvoiceAlreadyExists = errors.New("appointment already has an invoice")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrValidation           = errors.New("validation failed")
)

const appointmentCompleted = "COMPLETED"

// InvoiceObserver is told about every invoice created or moved to a new status.
type InvoiceObserver interface {
	Invoice(status string)
}

type Service struct {
	repo              Repository
	tx                db.Transactor
	events            events.Publisher
	consultationPrice decimal.Decimal
	observer          InvoiceObserver
	now               func() time.Time
}

func NewService(repo Repository, tx db.Transactor, pub events.Publisher, consultationPrice decimal.Decimal) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:              repo,
		tx:                tx,
		events:            pub,
		consultationPrice: consultationPrice,
		now:               time.Now,
	}
}

// SetObserver attaches an optional InvoiceObserver to the service.
func (s *Service) SetObserver(o InvoiceObserver) {
	s.observer = o
}

func (s *Service) observe(status Status) {
	if s.observer != nil {
		s.observer.Invoice(string(status))
	}
}

type CreatedEvent struct {
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	AppointmentID uuid.UUID       `json:"appointmentId"`
	TutorID       uuid.UUID       `json:"tutorId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

type StatusChangedEvent struct {
	InvoiceID uuid.UUID `json:"invoiceId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
}

// CreateFromAppointment bills a completed appointment. The invoice lines and
// total are derived from what was rendered and consumed during the visit;
// nothing about the amount comes from the caller. Every write happens in one
// transaction.
func (s *Service) CreateFromAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	var inv *Invoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.LoadBillable(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if b.Appointment.Status != appointmentCompleted {
			return fmt.Errorf("%w (status %s)", ErrInvoiceNotAllowed, b.Appointment.Status)
		}
		if b.HasInvoice {
			return ErrInvoiceAlreadyExists
		}

		inv = &Invoice{AppointmentID: appointmentID, Status: StatusPending, TotalAmount: decimal.Zero}
		if err := s.repo.Create(ctx, inv); err != nil {
			if db.IsUniqueViolation(err, "invoices_appointment_id_key") {
				return ErrInvoiceAlreadyExists
			}
			return err
		}

		items := BuildItems(b, s.consultationPrice)
		for _, it := range items {
			it.InvoiceID = inv.ID
			if err := s.repo.AddItem(ctx, it); err != nil {
				return err
			}
		}

		inv.TotalAmount = Total(items)
		if err := s.repo.SetTotal(ctx, inv.ID, inv.TotalAmount); err != nil {
			return err
		}
		inv.Items = items
		inv.Appointment = &b.Appointment
		inv.Pet = &b.Pet
		inv.Tutor = &b.Tutor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observe(StatusPending)
	_ = s.events.Publish(ctx, events.InvoiceCreated, CreatedEvent{
		InvoiceID:     inv.ID,
		AppointmentID: inv.AppointmentID,
		TutorID:       inv.Tutor.ID,
		TotalAmount:   inv.TotalAmount,
	})
	return inv, nil
}

// UpdateStatus applies a status change. Setting the current status again is a
// no-op; PAID and CANCELLED invoices cannot change.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Invoice, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	var (
		inv     *Invoice
		from    Status
		changed bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}
		from = inv.Status
		if from == status {
			return nil
		}
		if !CanTransition(from, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
		}
		var paidAt *time.Time
		if status == StatusPaid {
			now := s.now().UTC()
			paidAt = &now
			inv.PaidAt = paidAt
		}
		if err := s.repo.SetStatus(ctx, id, status, paidAt); err != nil {
			return err
		}
		inv.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.observe(status)
		_ = s.events.Publish(ctx, events.InvoiceStatusChanged, StatusChangedEvent{InvoiceID: id, From: from, To: status})
	}
	if inv.Items, err = s.repo.ListItems(ctx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) withItems(ctx context.Context, inv *Invoice, err error) (*Invoice, error) {
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if inv.Items, err = s.repo.ListItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	return s.withItems(ctx, inv, err)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByAppointment(ctx, appointmentID)
	return s.withItems(ctx, inv, err)
}

func (s *Service) ListInvoices(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ListByTutor returns the invoices of every appointment booked for the tutor.
func (s *Service) ListByTutor(ctx context.Context, tutorID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.List(ctx, Filter{TutorID: &tutorID}, limit, offset)
}
