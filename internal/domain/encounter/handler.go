package encounter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

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
	read.GET("/encounters", h.ListEncounters)
	read.GET("/encounters/:id", h.GetEncounter)
	read.GET("/encounters/:id/history", h.GetStatusHistory)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	write.POST("/encounters", h.CreateEncounter)
	write.PUT("/encounters/:id", h.UpdateEncounter)
	write.PATCH("/encounters/:id/status", h.UpdateStatus)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.Clinical...))
	fhirRead.GET("/Encounter", h.SearchEncountersFHIR)
	fhirRead.GET("/Encounter/:id", h.GetEncounterFHIR)
}

func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(c.Request().Context()).Error().Err(err).
			Str("path", c.Request().URL.Path).Msg("internal error")
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func bindEncounter(c echo.Context) (*Encounter, error) {
	var e Encounter
	if err := c.Bind(&e); err != nil {
		return nil, err
	}
	e.TenantID = db.TenantFromContext(c.Request().Context())
	return &e, nil
}

// Decode parses an encounter in the REST request shape.
func Decode(data []byte) (*Encounter, error) {
	var e Encounter
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode encounter: %w", err)
	}
	return &e, nil
}

func (h *Handler) CreateEncounter(c echo.Context) error {
	e, err := bindEncounter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateEncounter(c.Request().Context(), e); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, e.View())
}

func (h *Handler) GetEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	e, err := h.svc.GetEncounter(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, e.View())
}

func (h *Handler) ListEncounters(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID uuid.UUID
	if pid := c.QueryParam("patient_id"); pid != "" {
		var err error
		if patientID, err = uuid.Parse(pid); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	ctx := c.Request().Context()
	encs, total, err := h.svc.ListEncounters(ctx, db.TenantFromContext(ctx), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	views := make([]View, len(encs))
	for i, e := range encs {
		views[i] = e.View()
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) UpdateEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := bindEncounter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	if err := h.svc.UpdateEncounter(c.Request().Context(), e); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, e.View())
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	e, err := h.svc.UpdateEncounterStatus(ctx, db.TenantFromContext(ctx), id, strings.TrimSpace(req.Status))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, e.View())
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	history, err := h.svc.GetStatusHistory(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		return httpError(c, err)
	}
	if history == nil {
		history = []*StatusChange{}
	}
	return c.JSON(http.StatusOK, history)
}

// -- FHIR --

func (h *Handler) GetEncounterFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Encounter", c.Param("id")))
	}
	e, err := h.svc.GetEncounter(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Encounter", c.Param("id")))
		}
		return fhir.InternalError(c, err)
	}

	doc, err := e.ToFHIR()
	h.metrics.ObserveProjection("Encounter", err)
	if err != nil {
		return fhir.ProjectionFailed(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// SearchEncountersFHIR supports patient, as a bare id or Patient/<id>.
func (h *Handler) SearchEncountersFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var patientID uuid.UUID
	if ref := c.QueryParam("patient"); ref != "" {
		var err error
		patientID, err = uuid.Parse(strings.TrimPrefix(ref, "Patient/"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome("error", "invalid", "invalid patient reference: "+ref))
		}
	}

	encs, total, err := h.svc.ListEncounters(ctx, db.TenantFromContext(ctx), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return fhir.InternalError(c, err)
	}

	resources := make([]map[string]interface{}, 0, len(encs))
	for _, e := range encs {
		doc, err := e.ToFHIR()
		h.metrics.ObserveProjection("Encounter", err)
		if err != nil {
			// one bad record does not fail the page
			zerolog.Ctx(ctx).Warn().Err(err).Str("resource", "Encounter").
				Str("id", e.ID.String()).Msg("skipping record in searchset")
			continue
		}
		resources = append(resources, doc)
	}

	bundle, err := fhir.NewSearchBundle(resources, total, "/fhir/Encounter", pg)
	if err != nil {
		return fhir.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, bundle)
}
