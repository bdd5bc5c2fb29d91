package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	httpapi "github.com/quokkahq/parlor/internal/parlor/http"
	"github.com/quokkahq/parlor/internal/parlor/metrics"
	"github.com/quokkahq/parlor/internal/parlor/service"
	"github.com/quokkahq/parlor/internal/parlor/store"
	"github.com/quokkahq/parlor/internal/parlor/store/drivers/sqlite"
	"github.com/quokkahq/parlor/pkg/cryptox"
	"github.com/quokkahq/parlor/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the identity service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	tokenService   *service.TokenService
	userService    *service.UserService
	roleService    *service.RolesService
	credentials    *service.CredentialService
	sessionManager *service.SessionManager
	broker         *service.Broker
	messageService *service.MessageService
	flowService    *service.FlowService

	registry  *prometheus.Registry
	collector *metrics.Collector

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized, migrations
// applied and the role catalog seeded.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "parlor",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if cfg.SecretKey == "" {
		// Dev only; LoadConfig rejects a missing key elsewhere. Sessions
		// and mailed links die with the process.
		app.cfg.SecretKey = cryptox.MustGenerateToken(cryptox.TokenSize256)
		app.logger.Warn("no secret key configured, generated an ephemeral one")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()

	if err := app.roleService.EnsureSeeded(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	app.initHTTP()
	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("parlor starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down parlor...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("parlor stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	app.registry = prometheus.NewRegistry()
	app.collector = metrics.NewCollector(app.registry)

	app.tokenService = &service.TokenService{
		Secret: []byte(app.cfg.SecretKey),
		Issuer: "parlor",
	}

	app.roleService = &service.RolesService{Store: app.db}
	app.userService = &service.UserService{
		Store:      app.db,
		AdminEmail: app.cfg.AdminEmail,
	}
	app.credentials = &service.CredentialService{Store: app.db}

	app.sessionManager = &service.SessionManager{
		Tokens:      app.tokenService,
		Store:       app.db,
		SessionTTL:  app.cfg.SessionTTL,
		RememberTTL: app.cfg.RememberTTL,
		FreshFor:    app.cfg.FreshFor,
	}

	app.broker = &service.Broker{
		Providers:   app.cfg.Providers(),
		Store:       app.db,
		Users:       app.userService,
		Tokens:      app.tokenService,
		Client:      newProviderClient(app.cfg.ProviderTimeout),
		Limiter:     rate.NewLimiter(rate.Limit(app.cfg.ProviderRate), 1),
		CallTimeout: app.cfg.ProviderTimeout,
		StateTTL:    app.cfg.OAuthStateTTL,
		LinkPolicy:  service.LinkPolicy(app.cfg.LinkPolicy),
		Metrics:     app.collector,
	}

	app.messageService = &service.MessageService{Store: app.db}

	app.flowService = &service.FlowService{
		Users:          app.userService,
		Tokens:         app.tokenService,
		Mailer:         service.LogMailer{},
		Metrics:        app.collector,
		BaseURL:        app.cfg.BaseURL,
		ConfirmTTL:     app.cfg.ConfirmTTL,
		ResetTTL:       app.cfg.ResetTTL,
		ChangeEmailTTL: app.cfg.ChangeEmailTTL,
	}
}

// newProviderClient builds the SSRF-guarded outbound client used for all
// provider traffic. Private, loopback and link-local destinations are
// rejected at dial time, after DNS resolution.
func newProviderClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()
	return safeurl.Client(config).Client
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.sessionManager, app.logger)

	router.Credentials = app.credentials
	router.Users = app.userService
	router.Broker = app.broker
	router.Messages = app.messageService
	router.Flows = app.flowService
	router.Metrics = app.collector
	router.Gatherer = app.registry
	router.SecureCookies = app.cfg.Env != "dev"
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
