package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinified/clinified/internal/config"
	"github.com/clinified/clinified/internal/domain/encounter"
	"github.com/clinified/clinified/internal/domain/patient"
	"github.com/clinified/clinified/internal/domain/user"
	"github.com/clinified/clinified/internal/platform/auth"
	"github.com/clinified/clinified/internal/platform/db"
	"github.com/clinified/clinified/internal/platform/export"
	"github.com/clinified/clinified/internal/platform/fhir"
	"github.com/clinified/clinified/internal/platform/middleware"
	"github.com/clinified/clinified/internal/platform/telemetry"
	"github.com/clinified/clinified/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinified-server",
		Short:        "Clinified clinical records API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(projectCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(cfg.Level()).With().Timestamp().Logger()
}

// setup loads and validates config and opens the pool. Callers close the pool.
func setup(ctx context.Context) (*config.Config, zerolog.Logger, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	}, logger)
	if err != nil {
		return nil, logger, nil, err
	}
	return cfg, logger, pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS, logger).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS, logger).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := cmd.Context()
			_, _, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			t, err := db.CreateTenant(ctx, pool, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s (%s). Send it as X-Tenant-ID.\n", t.Name, t.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant display name")

	cmd.AddCommand(createCmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Publish FHIR projections of changed records",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Export records changed since the last checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if len(cfg.KafkaBrokers) == 0 {
				return fmt.Errorf("KAFKA_BROKERS is required for export")
			}
			pub, err := export.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
			if err != nil {
				return err
			}
			defer pub.Close()

			rdb, err := export.NewRedisClient(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()
			checkpoints := export.NewRedisCheckpoints(rdb)

			sources := []export.Source{
				patient.ExportSource(patient.NewRepo(pool)),
				encounter.ExportSource(encounter.NewRepo(pool)),
			}
			if reset {
				for _, src := range sources {
					if err := checkpoints.Reset(ctx, src.ResourceType()); err != nil {
						return err
					}
				}
			}

			var metrics *telemetry.Metrics
			if cfg.MetricsEnabled {
				metrics = telemetry.New()
			}

			logger.Info().Str("topic", pub.Topic()).Strs("brokers", cfg.KafkaBrokers).Msg("starting export")
			results, err := export.New(pub, checkpoints, cfg.SyncConfig(), metrics, logger).Run(ctx, sources...)
			printExportResults(cmd.OutOrStdout(), results)
			return err
		},
	}
	runCmd.Flags().Bool("reset", false, "Clear checkpoints and re-export everything")

	cmd.AddCommand(runCmd)
	return cmd
}

func printExportResults(w io.Writer, results []export.Result) {
	fmt.Fprintf(w, "%-12s %-10s %-10s %-8s %s\n", "RESOURCE", "EXPORTED", "SKIPPED", "BATCHES", "CHECKPOINT")
	for _, r := range results {
		checkpoint := "-"
		if !r.Checkpoint.IsZero() {
			checkpoint = r.Checkpoint.UpdatedAt.UTC().Format(time.RFC3339) + " " + r.Checkpoint.ID.String()
		}
		fmt.Fprintf(w, "%-12s %-10d %-10d %-8d %s\n", r.ResourceType, r.Exported, r.Skipped, r.Batches, checkpoint)
	}
}

func projectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project <patient|encounter> <file.json>",
		Short: "Print the FHIR projection of a record read from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			resource, err := projectRecord(args[0], data)
			if err != nil {
				if fe, ok := fhir.AsFieldError(err); ok {
					out, _ := json.MarshalIndent(fhir.RequiredOutcome(fe), "", "  ")
					fmt.Fprintln(cmd.ErrOrStderr(), string(out))
				}
				return err
			}
			out, err := json.MarshalIndent(resource, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

var errUnknownKind = errors.New("record kind must be patient or encounter")

func projectRecord(kind string, data []byte) (map[string]interface{}, error) {
	switch kind {
	case "patient":
		p, err := patient.Decode(data)
		if err != nil {
			return nil, err
		}
		return p.ToFHIR()
	case "encounter":
		e, err := encounter.Decode(data)
		if err != nil {
			return nil, err
		}
		return e.ToFHIR()
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKind, kind)
	}
}

func runServer() error {
	ctx := context.Background()
	cfg, logger, pool, err := setup(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode: unauthenticated requests act as an admin user")
	}

	defaultTenant, err := cfg.DefaultTenantID()
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.New()
		metrics.RegisterPool(pool)
	}

	e := newServer(cfg, logger, metrics)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(db.PoolCheck(pool)))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	tenant := db.TenantMiddleware(defaultTenant)
	apiV1 := e.Group("/api/v1", tenant)
	fhirGroup := e.Group("/fhir", tenant)

	patientSvc := patient.NewService(patient.NewRepo(pool))
	patient.NewHandler(patientSvc, metrics).RegisterRoutes(apiV1, fhirGroup)

	encounterSvc := encounter.NewService(encounter.NewRepo(pool), db.NewTxRunner(pool))
	encounter.NewHandler(encounterSvc, metrics).RegisterRoutes(apiV1, fhirGroup)

	userSvc := user.NewService(user.NewRepo(pool))
	user.NewHandler(userSvc, metrics).RegisterRoutes(apiV1, fhirGroup)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with the global middleware chain.
// Tenant resolution is attached per group so the health and metrics
// routes never need a tenant.
func newServer(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if metrics != nil {
		e.Use(metrics.Middleware())
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.SecretKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.Use(middleware.Audit(logger))
	return e
}
