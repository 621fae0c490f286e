package main

import (
	"context"
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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bugijo/eumaeus-system-sub002/internal/config"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/account"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/billing"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/clinical"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/inventory"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/portal"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/scheduling"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/tutor"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/cache"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/events"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/logging"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/middleware"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/telemetry"
	"github.com/bugijo/eumaeus-system-sub002/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulsevet-server",
		Short: "PulseVet clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			schema, _ := cmd.Flags().GetString("schema")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) to schema %s.\n", count, schema)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(os.Stdout, schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff users",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff user with a login",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := account.CreateStaffInput{}
			in.Name, _ = cmd.Flags().GetString("name")
			in.Email, _ = cmd.Flags().GetString("email")
			in.Password, _ = cmd.Flags().GetString("password")
			in.Role, _ = cmd.Flags().GetString("role")
			if in.Password == "" {
				in.Password = os.Getenv("PULSEVET_PASSWORD")
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := account.NewService(account.NewRepoPG(pool), db.NewTransactor(pool),
				newTokenIssuer(cfg), auth.NewPasswordHasher(cfg.BcryptCost), nil)
			u, err := svc.CreateStaff(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s user %s (%s).\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("password", "", "Login password (defaults to $PULSEVET_PASSWORD)")
	createCmd.Flags().String("role", auth.RoleDono, "DONO, VETERINARIO, FUNCIONARIO or FINANCEIRO")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("email")

	cmd.AddCommand(createCmd)
	return cmd
}

func newTokenIssuer(cfg *config.Config) *auth.TokenIssuer {
	return auth.NewTokenIssuer(auth.TokenConfig{
		Issuer:        cfg.JWTIssuer,
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
}

// deps are the process-wide resources the HTTP server is built from. Redis
// and the publisher are optional.
type deps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	pool        *pgxpool.Pool
	rdb         *redis.Client
	publisher   events.Publisher
	revocations auth.RevocationStore
	metrics     *telemetry.Metrics
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	d := &deps{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		publisher: events.Nop{},
		metrics:   telemetry.New(cfg.MetricsNamespace),
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		d.rdb = rdb
		d.revocations = auth.NewRedisRevocationStore(rdb)
		logger.Info().Msg("connected to redis")
	} else {
		mem := auth.NewMemoryRevocationStore(time.Minute)
		defer mem.Close()
		d.revocations = mem
		logger.Warn().Msg("REDIS_URL not set, token revocation and rate limits are per process")
	}

	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer amqpPub.Close()
		d.publisher = amqpPub
		logger.Info().Msg("publishing domain events")
	}

	e := newServer(d)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
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
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newRateLimiter picks the shared Redis bucket when Redis is configured.
func newRateLimiter(d *deps) echo.MiddlewareFunc {
	cfg := d.cfg
	if d.rdb != nil {
		return middleware.RedisRateLimit(middleware.RedisRateLimitConfig{
			Capacity:       cfg.RateLimitBurst,
			RefillTokens:   max(1, int(cfg.RateLimitRPS)),
			RefillInterval: time.Second,
		}, d.rdb, d.logger)
	}
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
		rl.BurstSize = cfg.RateLimitBurst
	}
	return middleware.RateLimit(rl)
}

// newServer wires every domain onto a fresh echo instance.
func newServer(d *deps) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	if cfg.MetricsEnabled {
		e.Use(d.metrics.Middleware())
	}
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit("1M"))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	var checks []db.Check
	if d.rdb != nil {
		checks = append(checks, db.Check{Name: "redis", Ping: cache.Pinger(d.rdb)})
	}
	e.GET("/health/db", db.HealthHandler(d.pool, checks...))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))
	}

	publisher := events.NewBestEffort(d.publisher, logger, d.metrics.PublishFailed)
	tx := db.NewTransactor(d.pool)
	issuer := newTokenIssuer(cfg)

	// The token is read before the limiter so authenticated callers get a
	// bucket per account instead of sharing their network's IP bucket.
	api := e.Group("/api", auth.Authenticate(issuer, d.revocations), newRateLimiter(d))

	// Services
	accountSvc := account.NewService(account.NewRepoPG(d.pool), tx, issuer,
		auth.NewPasswordHasher(cfg.BcryptCost), d.revocations)
	accountSvc.SetObserver(d.metrics)

	tutorSvc := tutor.NewService(tutor.NewTutorRepoPG(d.pool), tutor.NewPetRepoPG(d.pool), tx)
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepoPG(d.pool),
		scheduling.NewCatalogRepoPG(d.pool), tutorSvc, tx)

	inventorySvc := inventory.NewService(inventory.NewProductRepoPG(d.pool), tx)
	inventorySvc.SetObserver(d.metrics)
	clinicalSvc := clinical.NewService(clinical.NewRecordRepoPG(d.pool), inventorySvc, tx, publisher)

	billingSvc := billing.NewService(billing.NewInvoiceRepoPG(d.pool), tx, publisher, cfg.ConsultationPrice())
	billingSvc.SetObserver(d.metrics)

	portalSvc := portal.NewService(tutorSvc, schedulingSvc, billingSvc)

	// Routes. Access checks are per route so that unknown /api paths stay 404.
	accountHandler := account.NewHandler(accountSvc)
	accountHandler.RegisterPublicRoutes(api)
	accountHandler.RegisterRoutes(api)
	accountHandler.RegisterStaffRoutes(api)
	tutor.NewHandler(tutorSvc).RegisterRoutes(api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
	inventory.NewHandler(inventorySvc).RegisterRoutes(api)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(api)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	tutors := api.Group("/portal", auth.RequireAccountType(auth.AccountTutor))
	portal.NewHandler(portalSvc).RegisterRoutes(tutors)

	return e
}
