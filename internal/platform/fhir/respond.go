package fhir

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ProjectionFailed answers a failed ToFHIR call: 422 with a "required"
// issue when a source field is missing, 500 otherwise.
func ProjectionFailed(c echo.Context, err error) error {
	if fe, ok := AsFieldError(err); ok {
		return c.JSON(http.StatusUnprocessableEntity, RequiredOutcome(fe))
	}
	return InternalError(c, err)
}

// InternalError logs err with the request logger and answers a generic 500
// OperationOutcome. Storage details never reach the client.
func InternalError(c echo.Context, err error) error {
	zerolog.Ctx(c.Request().Context()).Error().Err(err).
		Str("path", c.Request().URL.Path).Msg("internal error")
	return c.JSON(http.StatusInternalServerError, ErrorOutcome(http.StatusText(http.StatusInternalServerError)))
}
