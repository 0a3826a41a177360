package user

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinified/clinified/internal/platform/auth"
	"github.com/clinified/clinified/internal/platform/db"
	"github.com/clinified/clinified/internal/platform/fhir"
	"github.com/clinified/clinified/internal/platform/telemetry"
	"github.com/clinified/clinified/pkg/pagination"
)

type Handler struct {
	svc     *Service
	metrics *telemetry.Metrics
}

func NewHandler(svc *Service, metrics *telemetry.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.Clinical...))
	read.GET("/users", h.ListUsers)
	read.GET("/users/:id", h.GetUser)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/users", h.CreateUser)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeactivateUser)

	fhirGroup.GET("/Practitioner/:id", h.GetPractitionerFHIR, auth.RequireRole(auth.Clinical...))
}

// input carries the plaintext password, which User never serializes.
type input struct {
	*User
	Password string `json:"password"`
}

func bindUser(c echo.Context) (*User, string, error) {
	u := &User{}
	in := input{User: u}
	if err := c.Bind(&in); err != nil {
		return nil, "", err
	}
	u.TenantID = db.TenantFromContext(c.Request().Context())
	return u, in.Password, nil
}

func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(c.Request().Context()).Error().Err(err).
			Str("path", c.Request().URL.Path).Msg("internal error")
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *Handler) CreateUser(c echo.Context) error {
	u, password, err := bindUser(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUser(c.Request().Context(), u, password); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, u.View())
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	u, err := h.svc.GetUser(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u.View())
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	users, total, err := h.svc.ListUsers(ctx, db.TenantFromContext(ctx), c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	views := make([]View, len(users))
	for i, u := range users {
		views[i] = u.View()
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, password, err := bindUser(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	if err := h.svc.UpdateUser(c.Request().Context(), u, password); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u.View())
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeactivateUser(ctx, db.TenantFromContext(ctx), id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetPractitionerFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Practitioner", c.Param("id")))
	}
	u, err := h.svc.GetUser(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Practitioner", c.Param("id")))
		}
		return fhir.InternalError(c, err)
	}

	doc, err := u.ToFHIR()
	h.metrics.ObserveProjection("Practitioner", err)
	if err != nil {
		return fhir.ProjectionFailed(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}
