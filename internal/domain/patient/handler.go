package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinified/clinified/internal/platform/auth"
	"github.com/clinified/clinified/internal/platform/db"
	"github.com/clinified/clinified/internal/platform/fhir"
	"github.com/clinified/clinified/internal/platform/telemetry"
	"github.com/clinified/clinified/pkg/fhirmodels"
	"github.com/clinified/clinified/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc     *Service
	metrics *telemetry.Metrics
}

func NewHandler(svc *Service, metrics *telemetry.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.Clinical...))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleStaff))
	write.POST("/patients", h.CreatePatient)
	write.PUT("/patients/:id", h.UpdatePatient)

	api.DELETE("/patients/:id", h.DeactivatePatient, auth.RequireRole(auth.RoleAdmin))

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.Clinical...))
	fhirRead.GET("/Patient", h.SearchPatientsFHIR)
	fhirRead.GET("/Patient/:id", h.GetPatientFHIR)
}

// input accepts calendar dates as YYYY-MM-DD.
type input struct {
	*Patient
	DateOfBirth string  `json:"date_of_birth"`
	DateOfDeath *string `json:"date_of_death,omitempty"`
}

func (in input) apply() error {
	if in.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, in.DateOfBirth)
		if err != nil {
			return invalid("date_of_birth must be YYYY-MM-DD")
		}
		in.Patient.DateOfBirth = dob
	}
	if in.DateOfDeath != nil && *in.DateOfDeath != "" {
		dod, err := time.Parse(dateLayout, *in.DateOfDeath)
		if err != nil {
			return invalid("date_of_death must be YYYY-MM-DD")
		}
		in.Patient.DateOfDeath = &dod
	}
	return nil
}

func bindPatient(c echo.Context) (*Patient, error) {
	p := &Patient{}
	in := input{Patient: p}
	if err := c.Bind(&in); err != nil {
		return nil, err
	}
	if err := in.apply(); err != nil {
		return nil, err
	}
	p.TenantID = db.TenantFromContext(c.Request().Context())
	return p, nil
}

// Decode parses a patient in the REST request shape.
func Decode(data []byte) (*Patient, error) {
	p := &Patient{}
	in := input{Patient: p}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode patient: %w", err)
	}
	if err := in.apply(); err != nil {
		return nil, err
	}
	return p, nil
}

func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(c.Request().Context()).Error().Err(err).
			Str("path", c.Request().URL.Path).Msg("internal error")
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *Handler) CreatePatient(c echo.Context) error {
	p, err := bindPatient(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, p.View(h.svc.Now()))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatient(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p.View(h.svc.Now()))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	patients, total, err := h.svc.SearchPatients(ctx, db.TenantFromContext(ctx), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	now := h.svc.Now()
	views := make([]View, len(patients))
	for i, p := range patients {
		views[i] = p.View(now)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := bindPatient(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p.View(h.svc.Now()))
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeactivatePatient(ctx, db.TenantFromContext(ctx), id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- FHIR --

func (h *Handler) GetPatientFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
	}
	p, err := h.svc.GetPatient(ctx, db.TenantFromContext(ctx), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
		}
		return fhir.InternalError(c, err)
	}

	doc, err := p.ToFHIR()
	h.metrics.ObserveProjection("Patient", err)
	if err != nil {
		return fhir.ProjectionFailed(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// SearchPatientsFHIR supports identifier (patient number, optionally
// system|value) and name.
func (h *Handler) SearchPatientsFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := db.TenantFromContext(ctx)
	pg := pagination.FromContext(c)

	var (
		patients []*Patient
		total    int
		err      error
	)
	if ident := c.QueryParam("identifier"); ident != "" {
		patients, err = h.byIdentifier(c, tenantID, ident)
		total = len(patients)
	} else {
		patients, total, err = h.svc.SearchPatients(ctx, tenantID, c.QueryParam("name"), pg.Limit, pg.Offset)
	}
	if err != nil {
		return fhir.InternalError(c, err)
	}

	resources := make([]map[string]interface{}, 0, len(patients))
	for _, p := range patients {
		doc, err := p.ToFHIR()
		h.metrics.ObserveProjection("Patient", err)
		if err != nil {
			// one bad record does not fail the page
			zerolog.Ctx(ctx).Warn().Err(err).Str("resource", "Patient").
				Str("id", p.ID.String()).Msg("skipping record in searchset")
			continue
		}
		resources = append(resources, doc)
	}

	bundle, err := fhir.NewSearchBundle(resources, total, "/fhir/Patient", pg)
	if err != nil {
		return fhir.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) byIdentifier(c echo.Context, tenantID uuid.UUID, ident string) ([]*Patient, error) {
	system, value, found := strings.Cut(ident, "|")
	if !found {
		value, system = system, ""
	}
	if system != "" && system != fhirmodels.IdentifierPatient {
		return nil, nil
	}
	p, err := h.svc.GetPatientByNumber(c.Request().Context(), tenantID, value)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*Patient{p}, nil
}
