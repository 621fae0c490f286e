package billing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
	"github.com/bugijo/eumaeus-system-sub002/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	create := auth.RequirePermission(auth.ActionCreate, auth.SubjectInvoice)
	read := auth.RequirePermission(auth.ActionRead, auth.SubjectInvoice)

	api.POST("/appointments/:id/invoice", h.CreateFromAppointment, create)
	api.GET("/appointments/:id/invoice", h.GetByAppointment, read)

	api.GET("/invoices", h.ListInvoices, read)
	api.POST("/invoices", h.CreateInvoice, create)
	api.GET("/invoices/:id", h.GetInvoice, read)
	api.PATCH("/invoices/:id/status", h.UpdateStatus, auth.RequirePermission(auth.ActionUpdate, auth.SubjectInvoice))
}

// httpError maps billing errors to HTTP errors. Anything unknown is passed
// through and ends up as a generic 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrInvoiceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvoiceNotAllowed), errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvoiceAlreadyExists), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateFromAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.CreateFromAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

type createInvoiceRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AppointmentID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointmentId is required")
	}
	inv, err := h.svc.CreateFromAppointment(c.Request().Context(), req.AppointmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetByAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetByAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Status: Status(strings.ToUpper(c.QueryParam("status")))}
	if v := c.QueryParam("tutor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid tutor_id")
		}
		f.TutorID = &id
	}
	items, total, err := h.svc.ListInvoices(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inv, err := h.svc.UpdateStatus(c.Request().Context(), id, Status(strings.ToUpper(string(req.Status))))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}
