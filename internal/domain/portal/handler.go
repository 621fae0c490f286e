package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bugijo/eumaeus-system-sub002/internal/domain/scheduling"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
	"github.com/bugijo/eumaeus-system-sub002/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the portal on a group already restricted to tutor
// tokens.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/my-pets", h.MyPets)
	api.GET("/my-appointments", h.MyAppointments)
	api.GET("/my-appointments/:id", h.MyAppointment)
	api.POST("/my-appointments", h.Book)
	api.POST("/my-appointments/:id/cancel", h.Cancel)
	api.GET("/my-invoices", h.MyInvoices)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPetNotFound), errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotCancellable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

func tutorID(c echo.Context) (uuid.UUID, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok || p.Type != auth.AccountTutor {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "tutor account required")
	}
	return p.AccountID, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) MyPets(c echo.Context) error {
	owner, err := tutorID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.MyPets(c.Request().Context(), owner, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) MyAppointments(c echo.Context) error {
	owner, err := tutorID(c)
	if err != nil {
		return err
	}
	status := scheduling.Status(strings.ToUpper(c.QueryParam("status")))
	pg := pagination.FromContext(c)
	items, total, err := h.svc.MyAppointments(c.Request().Context(), owner, status, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) MyAppointment(c echo.Context) error {
	owner, err := tutorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.MyAppointment(c.Request().Context(), owner, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Book(c echo.Context) error {
	owner, err := tutorID(c)
	if err != nil {
		return err
	}
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Book(c.Request().Context(), owner, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	owner, err := tutorID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), owner, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) MyInvoices(c echo.Context) error {
	owner, err := tutorID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.MyInvoices(c.Request().Context(), owner, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
