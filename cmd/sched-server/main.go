package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medsched/medsched/internal/config"
	"github.com/medsched/medsched/internal/domain/absence"
	"github.com/medsched/medsched/internal/domain/availability"
	"github.com/medsched/medsched/internal/domain/duty"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/middleware"
)

// shiftSourceAdapter exposes the duty domain's shifts as generation
// templates, avoiding a circular import between the duty and
// availability packages.
type shiftSourceAdapter struct {
	duties *duty.Service
}

func newShiftSourceAdapter(duties *duty.Service) *shiftSourceAdapter {
	return &shiftSourceAdapter{duties: duties}
}

func (a *shiftSourceAdapter) TemplateByID(ctx context.Context, shiftID uuid.UUID) (*availability.ShiftTemplate, error) {
	sh, err := a.duties.GetShift(ctx, shiftID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	d, err := a.duties.GetDuty(ctx, sh.DutyID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toTemplate(d, sh), nil
}

func (a *shiftSourceAdapter) ActiveTemplates(ctx context.Context) ([]*availability.ShiftTemplate, error) {
	duties, err := a.duties.CurrentDuties(ctx)
	if err != nil {
		return nil, err
	}
	var out []*availability.ShiftTemplate
	for _, d := range duties {
		shifts, err := a.duties.ListShiftsByDuty(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, sh := range shifts {
			if !sh.Active {
				continue
			}
			out = append(out, toTemplate(d, sh))
		}
	}
	return out, nil
}

func (a *shiftSourceAdapter) TemplatesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*availability.ShiftTemplate, error) {
	duties, err := a.duties.CurrentDuties(ctx)
	if err != nil {
		return nil, err
	}
	var out []*availability.ShiftTemplate
	for _, d := range duties {
		if d.DoctorID != doctorID {
			continue
		}
		shifts, err := a.duties.ListShiftsByDuty(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, sh := range shifts {
			if !sh.Active {
				continue
			}
			out = append(out, toTemplate(d, sh))
		}
	}
	return out, nil
}

func toTemplate(d *duty.Duty, sh *duty.Shift) *availability.ShiftTemplate {
	t := &availability.ShiftTemplate{
		ID:                 sh.ID,
		DoctorID:           d.DoctorID,
		Weekday:            sh.Weekday,
		Window:             sh.Window(),
		DefaultDurationMin: sh.DefaultDurationMin,
	}
	if bw, ok := sh.BreakWindow(); ok {
		t.Break = &bw
	}
	return t
}

func mapNotFound(err error) error {
	if errors.Is(err, duty.ErrNotFound) {
		return availability.ErrNotFound
	}
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "sched-server",
		Short: "Doctor availability and booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Repositories
	dutyRepo := duty.NewDutyRepoPG(pool)
	shiftRepo := duty.NewShiftRepoPG(pool)
	leaveRepo := absence.NewLeaveRepoPG(pool)
	overrideRepo := absence.NewOverrideRepoPG(pool)
	slotRepo := availability.NewSlotRepoPG(pool)

	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	// Services. The slot repo doubles as the duty domain's slot cleaner
	// and the absence domain's slot suppressor.
	dutySvc := duty.NewService(dutyRepo, shiftRepo, slotRepo, txRunner)
	absenceSvc := absence.NewService(leaveRepo, overrideRepo, slotRepo, txRunner)
	availabilitySvc := availability.NewService(slotRepo, newShiftSourceAdapter(dutySvc), absenceSvc, cfg.SlotDurationMin, logger)

	// Handlers
	duty.NewHandler(dutySvc).RegisterRoutes(apiV1)
	absence.NewHandler(absenceSvc).RegisterRoutes(apiV1)
	availability.NewHandler(availabilitySvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Horizon engine
	engineCtx, engineCancel := context.WithCancel(ctx)
	defer engineCancel()
	if cfg.HorizonEnabled {
		engine := availability.NewHorizonEngine(availabilitySvc, cfg.HorizonDays, cfg.SlotRetentionDays, cfg.HorizonInterval, logger)
		engine.Start(engineCtx)
		logger.Info().
			Int("horizon_days", cfg.HorizonDays).
			Dur("interval", cfg.HorizonInterval).
			Msg("horizon engine started")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	engineCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
