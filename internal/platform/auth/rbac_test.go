package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role    string
		action  Action
		subject Subject
		want    bool
	}{
		{RoleDono, ActionDelete, SubjectUser, true},
		{RoleDono, ActionCreate, SubjectInvoice, true},
		{RoleVeterinario, ActionCreate, SubjectMedicalRecord, true},
		{RoleVeterinario, ActionRead, SubjectInvoice, true},
		{RoleVeterinario, ActionUpdate, SubjectInvoice, false},
		{RoleVeterinario, ActionCreate, SubjectTutor, false},
		{RoleFuncionario, ActionCreate, SubjectTutor, true},
		{RoleFuncionario, ActionRead, SubjectMedicalRecord, true},
		{RoleFuncionario, ActionCreate, SubjectMedicalRecord, false},
		{RoleFuncionario, ActionRead, SubjectInvoice, false},
		{RoleFinanceiro, ActionUpdate, SubjectInvoice, true},
		{RoleFinanceiro, ActionCreate, SubjectProduct, true},
		{RoleFinanceiro, ActionUpdate, SubjectAppointment, false},
		{"UNKNOWN", ActionRead, SubjectPet, false},
		{"", ActionRead, SubjectPet, false},
	}

	for _, tt := range tests {
		if got := Can(tt.role, tt.action, tt.subject); got != tt.want {
			t.Errorf("Can(%q, %s, %s) = %v, want %v", tt.role, tt.action, tt.subject, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleDono, RoleVeterinario, RoleFuncionario, RoleFinanceiro} {
		if !ValidRole(r) {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if ValidRole("dono") {
		t.Error("role names are case-sensitive")
	}
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleDono)
	if len(perms) != 1 {
		t.Fatalf("expected 1 permission, got %d", len(perms))
	}
	perms[0].Subject = SubjectPet
	if PermissionsFor(RoleDono)[0].Subject != SubjectAll {
		t.Error("mutating the result must not change the table")
	}
	if len(PermissionsFor("UNKNOWN")) != 0 {
		t.Error("expected no permissions for unknown role")
	}
}

func runWithPrincipal(t *testing.T, p *Principal, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	return rec, mw(handler)(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		p    *Principal
		code int
	}{
		{"matching role", &Principal{AccountID: uuid.New(), Type: AccountUser, Role: RoleFinanceiro}, http.StatusOK},
		{"dono passes", &Principal{AccountID: uuid.New(), Type: AccountUser, Role: RoleDono}, http.StatusOK},
		{"other role", &Principal{AccountID: uuid.New(), Type: AccountUser, Role: RoleFuncionario}, http.StatusForbidden},
		{"tutor", &Principal{AccountID: uuid.New(), Type: AccountTutor}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runWithPrincipal(t, tt.p, RequireRole(RoleFinanceiro))
			if tt.code == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				return
			}
			assertHTTPCode(t, err, tt.code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	vet := &Principal{AccountID: uuid.New(), Type: AccountUser, Role: RoleVeterinario}
	if _, err := runWithPrincipal(t, vet, RequirePermission(ActionCreate, SubjectMedicalRecord)); err != nil {
		t.Errorf("expected vet to create records, got %v", err)
	}
	_, err := runWithPrincipal(t, vet, RequirePermission(ActionUpdate, SubjectInvoice))
	assertHTTPCode(t, err, http.StatusForbidden)

	tutor := &Principal{AccountID: uuid.New(), Type: AccountTutor, Role: RoleDono}
	_, err = runWithPrincipal(t, tutor, RequirePermission(ActionRead, SubjectPet))
	assertHTTPCode(t, err, http.StatusForbidden)

	_, err = runWithPrincipal(t, nil, RequirePermission(ActionRead, SubjectPet))
	assertHTTPCode(t, err, http.StatusUnauthorized)
}

func TestRequireAccountType(t *testing.T) {
	tutor := &Principal{AccountID: uuid.New(), Type: AccountTutor}
	if _, err := runWithPrincipal(t, tutor, RequireAccountType(AccountTutor)); err != nil {
		t.Errorf("expected tutor to pass, got %v", err)
	}

	staff := &Principal{AccountID: uuid.New(), Type: AccountUser, Role: RoleDono}
	_, err := runWithPrincipal(t, staff, RequireAccountType(AccountTutor))
	assertHTTPCode(t, err, http.StatusForbidden)

	_, err = runWithPrincipal(t, nil, RequireAccountType(AccountTutor))
	assertHTTPCode(t, err, http.StatusUnauthorized)
}
