package clinical

import (
	"time"

	"github.com/google/uuid"
)

type MedicalRecord struct {
	ID            uuid.UUID        `json:"id"`
	AppointmentID uuid.UUID        `json:"appointmentId"`
	Symptoms      *string          `json:"symptoms,omitempty"`
	Diagnosis     *string          `json:"diagnosis,omitempty"`
	Treatment     *string          `json:"treatment,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Products      []*RecordProduct `json:"products"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// RecordProduct is stock consumed during the visit the record documents.
type RecordProduct struct {
	ID              uuid.UUID `json:"id"`
	MedicalRecordID uuid.UUID `json:"medicalRecordId"`
	ProductID       uuid.UUID `json:"productId"`
	Name            string    `json:"name,omitempty"`
	Quantity        int       `json:"quantity"`
}

type ProductLine struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type CreateRecordInput struct {
	Symptoms  *string       `json:"symptoms"`
	Diagnosis *string       `json:"diagnosis"`
	Treatment *string       `json:"treatment"`
	Notes     *string       `json:"notes"`
	Products  []ProductLine `json:"products"`
}

// visit is the locked view of an appointment while a record is written.
type visit struct {
	ID      uuid.UUID
	PetID   uuid.UUID
	TutorID uuid.UUID
	Status  string
	// Billed is set once an invoice exists for the appointment.
	Billed bool
}

// CompletedEvent is published once a visit has its medical record.
type CompletedEvent struct {
	AppointmentID   uuid.UUID `json:"appointmentId"`
	MedicalRecordID uuid.UUID `json:"medicalRecordId"`
	PetID           uuid.UUID `json:"petId"`
	TutorID         uuid.UUID `json:"tutorId"`
}

type StockLowEvent struct {
	ProductID uuid.UUID `json:"productId"`
	Remaining int       `json:"remaining"`
}
