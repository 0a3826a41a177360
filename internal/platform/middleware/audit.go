package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinified/clinified/internal/platform/auth"
)

// AuditEntry records one access to patient data.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	ResourceType string
	PatientID    string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /fhir/ and /api/v1/ after the handler
// runs. Recorder failures are logged and never fail the request.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			entry := AuditEntry{
				UserID:       auth.UserIDFromContext(ctx),
				UserRoles:    auth.RolesFromContext(ctx),
				ResourceType: extractResourceType(path),
				PatientID:    extractPatientID(c),
				Action:       httpMethodToAction(req.Method),
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				Path:         path,
				Method:       req.Method,
				Timestamp:    time.Now().UTC(),
				StatusCode:   c.Response().Status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, rec := range recorders {
				if rec == nil {
					continue
				}
				if recErr := rec.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/fhir/") || strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType returns the first path segment after the route
// prefix: /fhir/Patient/1 gives Patient, /api/v1/encounters gives encounters.
func extractResourceType(path string) string {
	rest, ok := strings.CutPrefix(path, "/fhir/")
	if !ok {
		rest, ok = strings.CutPrefix(path, "/api/v1/")
	}
	if !ok {
		return "unknown"
	}
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

// extractPatientID finds the subject patient in the path or in the
// patient / patient_id query parameters.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path
	for _, prefix := range []string{"/fhir/Patient/", "/api/v1/patients/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			seg, _, _ := strings.Cut(rest, "/")
			if isUUID(seg) {
				return seg
			}
		}
	}

	if patient := c.QueryParam("patient"); patient != "" {
		return strings.TrimPrefix(patient, "Patient/")
	}
	return c.QueryParam("patient_id")
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
