package tutor

import (
	"errors"
	"net/http"

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

// RegisterRoutes mounts tutor and pet routes on a staff-only group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequirePermission(auth.ActionRead, auth.SubjectTutor)
	api.GET("/tutors", h.ListTutors, read)
	api.GET("/tutors/:id", h.GetTutor, read)
	api.GET("/tutors/:id/pets", h.ListTutorPets, auth.RequirePermission(auth.ActionRead, auth.SubjectPet))
	api.POST("/tutors", h.CreateTutor, auth.RequirePermission(auth.ActionCreate, auth.SubjectTutor))
	api.PUT("/tutors/:id", h.UpdateTutor, auth.RequirePermission(auth.ActionUpdate, auth.SubjectTutor))
	api.DELETE("/tutors/:id", h.DeleteTutor, auth.RequirePermission(auth.ActionDelete, auth.SubjectTutor))

	api.GET("/pets", h.ListPets, auth.RequirePermission(auth.ActionRead, auth.SubjectPet))
	api.GET("/pets/:id", h.GetPet, auth.RequirePermission(auth.ActionRead, auth.SubjectPet))
	api.POST("/pets", h.CreatePet, auth.RequirePermission(auth.ActionCreate, auth.SubjectPet))
	api.PUT("/pets/:id", h.UpdatePet, auth.RequirePermission(auth.ActionUpdate, auth.SubjectPet))
	api.DELETE("/pets/:id", h.DeletePet, auth.RequirePermission(auth.ActionDelete, auth.SubjectPet))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrTutorNotFound), errors.Is(err, ErrPetNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
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

// -- Tutor Handlers --

func (h *Handler) CreateTutor(c echo.Context) error {
	var t Tutor
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateTutor(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTutor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTutor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTutors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchTutors(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateTutor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var t Tutor
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t.ID = id
	if err := h.svc.UpdateTutor(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTutor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTutor(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTutorPets(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPetsByTutor(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Pet Handlers --

func (h *Handler) CreatePet(c echo.Context) error {
	var p Pet
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreatePet(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPet(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPet(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPets(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := PetFilter{Species: c.QueryParam("species"), Query: c.QueryParam("q")}
	if v := c.QueryParam("tutor_id"); v != "" {
		tid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid tutor_id")
		}
		f.TutorID = &tid
	}
	items, total, err := h.svc.ListPets(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePet(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Pet
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = id
	if err := h.svc.UpdatePet(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePet(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePet(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
