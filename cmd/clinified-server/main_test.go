package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinified/clinified/internal/config"
	"github.com/clinified/clinified/internal/platform/db"
	"github.com/clinified/clinified/internal/platform/export"
	"github.com/clinified/clinified/internal/platform/fhir"
)

func TestProjectRecord_Patient(t *testing.T) {
	id := uuid.New()
	data := []byte(`{
		"id": "` + id.String() + `",
		"patient_id": "PAT-0001",
		"first_name": "Asha",
		"last_name": "Rao",
		"date_of_birth": "1990-05-01",
		"gender": "female"
	}`)

	res, err := projectRecord("patient", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res["resourceType"] != "Patient" {
		t.Errorf("resourceType = %v, want Patient", res["resourceType"])
	}
	if res["id"] != id.String() {
		t.Errorf("id = %v, want %s", res["id"], id)
	}
	if res["birthDate"] != "1990-05-01" {
		t.Errorf("birthDate = %v, want 1990-05-01", res["birthDate"])
	}
}

func TestProjectRecord_PatientBadDate(t *testing.T) {
	_, err := projectRecord("patient", []byte(`{"date_of_birth": "01/05/1990"}`))
	if err == nil {
		t.Fatal("expected error for non ISO date")
	}
}

func TestProjectRecord_EncounterMissingField(t *testing.T) {
	_, err := projectRecord("encounter", []byte(`{"status": "planned"}`))
	if !errors.Is(err, fhir.ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
	if _, ok := fhir.AsFieldError(err); !ok {
		t.Error("expected a *FieldError")
	}
}

func TestProjectRecord_InvalidJSON(t *testing.T) {
	if _, err := projectRecord("encounter", []byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestProjectRecord_UnknownKind(t *testing.T) {
	_, err := projectRecord("observation", []byte(`{}`))
	if !errors.Is(err, errUnknownKind) {
		t.Fatalf("expected errUnknownKind, got %v", err)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "core", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "indexes"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2024-06-01 09:30:00") {
		t.Errorf("row 1 = %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") {
		t.Errorf("row 2 = %q", lines[3])
	}
}

func TestPrintExportResults(t *testing.T) {
	id := uuid.New()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printExportResults(&buf, []export.Result{
		{ResourceType: "Patient", Exported: 10, Skipped: 1, Batches: 2, Checkpoint: export.Cursor{UpdatedAt: at, ID: id}},
		{ResourceType: "Encounter"},
	})

	out := buf.String()
	if !strings.Contains(out, "2024-06-01T12:00:00Z "+id.String()) {
		t.Errorf("missing checkpoint in output:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("empty checkpoint should print '-', got %q", lines[2])
	}
}

func testServer(env string) *echo.Echo {
	cfg := &config.Config{
		Env:         env,
		SecretKey:   strings.Repeat("k", 32),
		CORSOrigins: []string{"*"},
	}
	e := newServer(cfg, zerolog.Nop(), nil)
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api/v1/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	return e
}

func serve(e *echo.Echo, path string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestNewServer_ProductionRequiresToken(t *testing.T) {
	e := testServer("production")

	if code := serve(e, "/health"); code != http.StatusOK {
		t.Errorf("/health = %d, want 200", code)
	}
	if code := serve(e, "/api/v1/ping"); code != http.StatusUnauthorized {
		t.Errorf("/api/v1/ping without token = %d, want 401", code)
	}
}

func TestNewServer_DevAllowsAnonymous(t *testing.T) {
	e := testServer("development")

	if code := serve(e, "/api/v1/ping"); code != http.StatusOK {
		t.Errorf("/api/v1/ping in development = %d, want 200", code)
	}
}
