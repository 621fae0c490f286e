package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleDono        = "DONO"
	RoleVeterinario = "VETERINARIO"
	RoleFuncionario = "FUNCIONARIO"
	RoleFinanceiro  = "FINANCEIRO"
)

type Action string

const (
	ActionManage Action = "manage"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Subject string

const (
	SubjectAll           Subject = "all"
	SubjectUser          Subject = "User"
	SubjectTutor         Subject = "Tutor"
	SubjectPet           Subject = "Pet"
	SubjectAppointment   Subject = "Appointment"
	SubjectMedicalRecord Subject = "MedicalRecord"
	SubjectProduct       Subject = "Product"
	SubjectService       Subject = "Service"
	SubjectInvoice       Subject = "Invoice"
)

// Permission is an action on a subject. "manage" covers every action and
// "all" covers every subject.
type Permission struct {
	Action  Action  `json:"action"`
	Subject Subject `json:"subject"`
}

var rolePermissions = map[string][]Permission{
	RoleDono: {
		{ActionManage, SubjectAll},
	},
	RoleVeterinario: {
		{ActionManage, SubjectAppointment},
		{ActionManage, SubjectMedicalRecord},
		{ActionRead, SubjectTutor},
		{ActionRead, SubjectPet},
		{ActionRead, SubjectProduct},
		{ActionRead, SubjectService},
		{ActionRead, SubjectInvoice},
	},
	RoleFuncionario: {
		{ActionManage, SubjectTutor},
		{ActionManage, SubjectPet},
		{ActionManage, SubjectAppointment},
		{ActionRead, SubjectProduct},
		{ActionRead, SubjectService},
		{ActionRead, SubjectMedicalRecord},
	},
	RoleFinanceiro: {
		{ActionManage, SubjectInvoice},
		{ActionManage, SubjectProduct},
		{ActionRead, SubjectAppointment},
		{ActionRead, SubjectTutor},
		{ActionRead, SubjectPet},
		{ActionRead, SubjectService},
	},
}

// ValidRole reports whether name is a known staff role.
func ValidRole(name string) bool {
	_, ok := rolePermissions[name]
	return ok
}

// PermissionsFor returns a copy of the permission set of role.
func PermissionsFor(role string) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

func Can(role string, action Action, subject Subject) bool {
	for _, p := range rolePermissions[role] {
		if (p.Action == ActionManage || p.Action == action) &&
			(p.Subject == SubjectAll || p.Subject == subject) {
			return true
		}
	}
	return false
}

// RequireAccountType rejects callers whose token is not of the given kind.
func RequireAccountType(t AccountType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if p.Type != t {
				return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("%s account required", t))
			}
			return next(c)
		}
	}
}

// RequirePermission allows staff whose role grants action on subject.
func RequirePermission(action Action, subject Subject) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !p.IsStaff() || !Can(p.Role, action, subject) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("permission required: %s %s", action, subject))
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks the staff role is one of roles.
// DONO passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if p.IsStaff() {
				for _, required := range roles {
					if p.Role == required || p.Role == RoleDono {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
