package tutor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tutor is a pet owner. Deleted tutors are hidden but kept for history.
type Tutor struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Document  *string    `json:"document,omitempty"`
	Address   *string    `json:"address,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"-"`
}

type Pet struct {
	ID        uuid.UUID           `json:"id"`
	TutorID   uuid.UUID           `json:"tutorId"`
	Name      string              `json:"name"`
	Species   string              `json:"species"`
	Breed     *string             `json:"breed,omitempty"`
	BirthDate *time.Time          `json:"birthDate,omitempty"`
	WeightKg  decimal.NullDecimal `json:"weightKg"`
	Notes     *string             `json:"notes,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	DeletedAt *time.Time          `json:"-"`
}

type PetFilter struct {
	TutorID *uuid.UUID
	Species string
	Query   string
}
