package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/domain/inventory"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/events"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrAppointmentCancelled = errors.New("appointment is cancelled")
	ErrAppointmentBilled    = errors.New("appointment is already invoiced")
	ErrRecordExists         = errors.New("appointment already has a medical record")
	ErrRecordNotFound       = errors.New("medical record not found")
	ErrValidation           = errors.New("validation failed")
)

const statusCancelled = "CANCELLED"

// StockConsumer takes products off the shelf. *inventory.Service satisfies it.
type StockConsumer interface {
	Consume(ctx context.Context, productID uuid.UUID, qty int, recordID uuid.UUID) (int, error)
}

type Service struct {
	records RecordRepository
	stock   StockConsumer
	tx      db.Transactor
	events  events.Publisher
}

func NewService(records RecordRepository, stock StockConsumer, tx db.Transactor, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{records: records, stock: stock, tx: tx, events: pub}
}

func validateInput(in *CreateRecordInput) error {
	for i, line := range in.Products {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("%w: products[%d].productId is required", ErrValidation, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: products[%d].quantity must be positive", ErrValidation, i)
		}
	}
	return nil
}

// CreateRecord writes the medical record of a visit, takes the consumed
// products out of stock and completes the appointment. Either all of it
// happens or none of it does.
func (s *Service) CreateRecord(ctx context.Context, appointmentID uuid.UUID, in *CreateRecordInput) (*MedicalRecord, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var (
		rec *MedicalRecord
		v   *visit
		low []StockLowEvent
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.records.LockVisit(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if v.Status == statusCancelled {
			return ErrAppointmentCancelled
		}
		// Products consumed after invoicing could never be billed.
		if v.Billed {
			return ErrAppointmentBilled
		}
		exists, err := s.records.ExistsForAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if exists {
			return ErrRecordExists
		}

		rec = &MedicalRecord{
			AppointmentID: appointmentID,
			Symptoms:      in.Symptoms,
			Diagnosis:     in.Diagnosis,
			Treatment:     in.Treatment,
			Notes:         in.Notes,
			Products:      []*RecordProduct{},
		}
		if err := s.records.Create(ctx, rec); err != nil {
			if db.IsUniqueViolation(err, "medical_records_appointment_id_key") {
				return ErrRecordExists
			}
			return err
		}

		for _, line := range in.Products {
			remaining, err := s.stock.Consume(ctx, line.ProductID, line.Quantity, rec.ID)
			if err != nil {
				return fmt.Errorf("product %s: %w", line.ProductID, err)
			}
			rp := &RecordProduct{MedicalRecordID: rec.ID, ProductID: line.ProductID, Quantity: line.Quantity}
			if err := s.records.AddProduct(ctx, rp); err != nil {
				return err
			}
			rec.Products = append(rec.Products, rp)
			if remaining <= inventory.LowStockThreshold {
				low = append(low, StockLowEvent{ProductID: line.ProductID, Remaining: remaining})
			}
		}

		return s.records.CompleteVisit(ctx, appointmentID)
	})
	if err != nil {
		return nil, err
	}

	_ = s.events.Publish(ctx, events.AppointmentCompleted, CompletedEvent{
		AppointmentID:   v.ID,
		MedicalRecordID: rec.ID,
		PetID:           v.PetID,
		TutorID:         v.TutorID,
	})
	for _, ev := range low {
		_ = s.events.Publish(ctx, events.StockLow, ev)
	}
	return rec, nil
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.records.GetByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if rec.Products, err = s.records.ListProducts(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}
