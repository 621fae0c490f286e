package scheduling

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID          uuid.UUID        `json:"id"`
	PetID       uuid.UUID        `json:"petId"`
	TutorID     uuid.UUID        `json:"tutorId"`
	ScheduledAt time.Time        `json:"scheduledAt"`
	Status      Status           `json:"status"`
	Notes       *string          `json:"notes,omitempty"`
	Services    []*BookedService `json:"services,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// BookedService is a catalog service attached to an appointment. Price is the
// catalog price at the moment it was attached.
type BookedService struct {
	ID            uuid.UUID       `json:"id"`
	AppointmentID uuid.UUID       `json:"appointmentId"`
	ServiceID     uuid.UUID       `json:"serviceId"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ClinicService is an entry of the billable service catalog.
type ClinicService struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Active      *bool           `json:"active,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type AppointmentFilter struct {
	Status  Status
	PetID   *uuid.UUID
	TutorID *uuid.UUID
	From    *time.Time
	To      *time.Time
}
