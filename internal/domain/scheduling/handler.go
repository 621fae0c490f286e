package scheduling

import (
	"errors"
	"net/http"
	"strings"
	"time"

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
	readAppt := auth.RequirePermission(auth.ActionRead, auth.SubjectAppointment)
	api.GET("/appointments", h.ListAppointments, readAppt)
	api.GET("/appointments/:id", h.GetAppointment, readAppt)

	api.POST("/appointments", h.CreateAppointment, auth.RequirePermission(auth.ActionCreate, auth.SubjectAppointment))

	writeAppt := auth.RequirePermission(auth.ActionUpdate, auth.SubjectAppointment)
	api.PATCH("/appointments/:id/status", h.UpdateStatus, writeAppt)
	api.POST("/appointments/:id/services", h.AddService, writeAppt)

	api.GET("/services", h.ListClinicServices, auth.RequirePermission(auth.ActionRead, auth.SubjectService))
	api.POST("/services", h.CreateClinicService, auth.RequirePermission(auth.ActionCreate, auth.SubjectService))
	api.PUT("/services/:id", h.UpdateClinicService, auth.RequirePermission(auth.ActionUpdate, auth.SubjectService))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrPetNotFound), errors.Is(err, ErrServiceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrServiceInactive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAppointmentClosed), errors.Is(err, ErrDuplicateService):
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

// -- Appointment Handlers --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func filterFromQuery(c echo.Context) (AppointmentFilter, error) {
	f := AppointmentFilter{Status: Status(strings.ToUpper(c.QueryParam("status")))}
	for name, dst := range map[string]**uuid.UUID{"pet_id": &f.PetID, "tutor_id": &f.TutorID} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = &id
		}
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := c.QueryParam(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, name+" must be RFC3339")
			}
			*dst = &t
		}
	}
	return f, nil
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
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, Status(strings.ToUpper(string(req.Status))))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type addServiceRequest struct {
	ServiceID uuid.UUID `json:"serviceId"`
}

func (h *Handler) AddService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req addServiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	bs, err := h.svc.AddService(c.Request().Context(), id, req.ServiceID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, bs)
}

// -- Catalog Handlers --

func (h *Handler) CreateClinicService(c echo.Context) error {
	var cs ClinicService
	if err := c.Bind(&cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateClinicService(c.Request().Context(), &cs); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cs)
}

func (h *Handler) UpdateClinicService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cs ClinicService
	if err := c.Bind(&cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cs.ID = id
	if err := h.svc.UpdateClinicService(c.Request().Context(), &cs); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) ListClinicServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"
	items, total, err := h.svc.ListClinicServices(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
