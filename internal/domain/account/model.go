package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
)

// AuthProfile is a login credential. It belongs to at most one staff user or
// one tutor; one with neither is orphaned and cannot sign in.
type AuthProfile struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string
	RefreshTokenHash *string
	UserID           *uuid.UUID
	TutorID          *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Account is the resolved owner of an AuthProfile: either *StaffAccount or
// *TutorAccount.
type Account interface {
	Identity() auth.Identity
	sealed()
}

type StaffAccount struct {
	UserID uuid.UUID
	Name   string
	Role   string
}

func (a *StaffAccount) Identity() auth.Identity {
	return auth.Identity{AccountID: a.UserID, Type: auth.AccountUser, Role: a.Role}
}

func (*StaffAccount) sealed() {}

type TutorAccount struct {
	TutorID uuid.UUID
	Name    string
}

func (a *TutorAccount) Identity() auth.Identity {
	return auth.Identity{AccountID: a.TutorID, Type: auth.AccountTutor}
}

func (*TutorAccount) sealed() {}

// User is the public view of an account. It never carries credentials.
type User struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Type        auth.AccountType  `json:"type"`
	Role        string            `json:"role,omitempty"`
	Permissions []auth.Permission `json:"permissions"`
}

func publicView(a Account, email string) *User {
	switch acc := a.(type) {
	case *StaffAccount:
		return &User{
			ID:          acc.UserID,
			Name:        acc.Name,
			Email:       email,
			Type:        auth.AccountUser,
			Role:        acc.Role,
			Permissions: auth.PermissionsFor(acc.Role),
		}
	case *TutorAccount:
		return &User{
			ID:          acc.TutorID,
			Name:        acc.Name,
			Email:       email,
			Type:        auth.AccountTutor,
			Permissions: []auth.Permission{},
		}
	}
	return nil
}

type Session struct {
	auth.TokenPair
	User *User `json:"user"`
}

// StaffRecord is a staff user row with its role name, if the role still exists.
type StaffRecord struct {
	ID   uuid.UUID
	Name string
	Role *string
}

type TutorRecord struct {
	ID   uuid.UUID
	Name string
}

type CreateStaffInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type PortalAccessInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
