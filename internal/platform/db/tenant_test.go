package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestExtractTenantID_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "hospital_abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if tid := extractTenantID(c); tid != "hospital_abc" {
		t.Errorf("expected hospital_abc, got %s", tid)
	}
}

func TestExtractTenantID_JWTTakesPriority(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "header")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("jwt_tenant_id", "jwt")

	if tid := extractTenantID(c); tid != "jwt" {
		t.Errorf("expected jwt (highest priority), got %s", tid)
	}
}

func runTenant(t *testing.T, header string, def uuid.UUID) (uuid.UUID, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Tenant-ID", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got uuid.UUID
	err := TenantMiddleware(def)(func(c echo.Context) error {
		got = TenantFromContext(c.Request().Context())
		return nil
	})(c)
	return got, err
}

func TestTenantMiddleware_HeaderUUID(t *testing.T) {
	want := uuid.New()
	got, err := runTenant(t, want.String(), uuid.Nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("tenant = %s, want %s", got, want)
	}
}

func TestTenantMiddleware_Default(t *testing.T) {
	def := uuid.New()
	got, err := runTenant(t, "", def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != def {
		t.Errorf("tenant = %s, want default %s", got, def)
	}
}

func TestTenantMiddleware_Rejects(t *testing.T) {
	if _, err := runTenant(t, "not-a-uuid", uuid.New()); err == nil {
		t.Error("expected error for malformed tenant")
	}
	if _, err := runTenant(t, "", uuid.Nil); err == nil {
		t.Error("expected error when no tenant resolves")
	}
}

func TestTenantFromContext_Empty(t *testing.T) {
	if tid := TenantFromContext(context.Background()); tid != uuid.Nil {
		t.Errorf("expected uuid.Nil, got %s", tid)
	}
}
