package db

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const TenantIDKey contextKey = "tenant_id"

// TenantMiddleware resolves the tenant for the request and stores it on the
// request context. Requests without a resolvable tenant are rejected.
func TenantMiddleware(defaultTenant uuid.UUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractTenantID(c)
			tenantID := defaultTenant
			if raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
				}
				tenantID = parsed
			}
			if tenantID == uuid.Nil {
				return echo.NewHTTPError(http.StatusBadRequest, "tenant identifier is required")
			}

			ctx := WithTenant(c.Request().Context(), tenantID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID.String())

			return next(c)
		}
	}
}

func extractTenantID(c echo.Context) string {
	// 1. Check JWT claim (set by auth middleware)
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}

	// 2. Check X-Tenant-ID header
	return c.Request().Header.Get("X-Tenant-ID")
}

// WithTenant returns ctx carrying tenantID.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// TenantFromContext retrieves the tenant ID from context, or uuid.Nil.
func TenantFromContext(ctx context.Context) uuid.UUID {
	tid, _ := ctx.Value(TenantIDKey).(uuid.UUID)
	return tid
}

// Tenant is a row of the tenants registry. Every clinical row carries the
// tenant id; there is no per-tenant schema.
type Tenant struct {
	ID   uuid.UUID
	Name string
}

// CreateTenant registers a tenant and returns it with its new id.
func CreateTenant(ctx context.Context, pool *pgxpool.Pool, name string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	t := &Tenant{ID: uuid.New(), Name: name}
	if _, err := pool.Exec(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, t.ID, t.Name); err != nil {
		return nil, fmt.Errorf("create tenant %q: %w", name, err)
	}
	return t, nil
}
