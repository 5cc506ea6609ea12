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

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	membership "github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/activitymap"
	"github.com/goliatone/go-membership/config"
	"github.com/goliatone/go-membership/mailer"
	"github.com/goliatone/go-membership/metrics"
	"github.com/goliatone/go-membership/mongostore"
	"github.com/goliatone/go-membership/repository"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config   *gconfig.Container[*config.Config]
	logger   *glog.BaseLogger
	store    membership.Store
	closers  []func() error
	notifier membership.Notifier
	registry *prometheus.Registry
	sink     membership.ActivitySink
	services *membership.Services
	srv      router.Server[*fiber.App]
	metrics  *http.Server
}

func (a *App) Config() *config.Config {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	_ = godotenv.Load()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("membership"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg, err := gconfig.New(&config.Config{})
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}
	lgr.GetLogger("config").Debug("configuration loaded", "name", cfg.Raw().Name, "driver", cfg.Raw().Persistence.GetDriver())

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if app.Config().Server.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg.Raw()))
		fmt.Println("============")
	}

	if region := app.Config().PhoneRegion; region != "" {
		membership.DefaultPhoneRegion = region
	}

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithNotifier,
		WithMetrics,
		WithServices,
		WithAdminAccount,
		WithHTTPServer,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			app.GetLogger("app").Error("startup failed", "error", err)
			app.close()
			os.Exit(1)
		}
	}

	addr := app.Config().Server.Address
	go func() {
		if err := app.srv.Serve(addr); err != nil {
			app.GetLogger("http").Error("http server stopped", "error", err)
		}
	}()
	app.GetLogger("http").Info("membership server listening", "address", addr)

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Warn("http shutdown failed", "error", err)
	}
	if app.metrics != nil {
		if err := app.metrics.Shutdown(shutdownCtx); err != nil {
			app.GetLogger("metrics").Warn("metrics shutdown failed", "error", err)
		}
	}
	app.close()
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.GetLogger("app").Warn("close failed", "error", err)
		}
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()
	logger := app.GetLogger("persistence")

	ctx, cancel := context.WithTimeout(ctx, pcfg.GetPingTimeout()*2)
	defer cancel()

	switch pcfg.GetDriver() {
	case config.DriverMongo:
		store, err := mongostore.NewStore(ctx, pcfg.DSN, pcfg.Database, mongostore.WithLogger(logger))
		if err != nil {
			return err
		}
		app.store = store
		app.closers = append(app.closers, store.Close)
	case config.DriverSQLite, config.DriverPostgres:
		store, err := repository.Connect(pcfg)
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return err
		}
		app.store = store
		app.closers = append(app.closers, store.Close)
	default:
		return fmt.Errorf("unsupported persistence driver %q", pcfg.Driver)
	}

	app.store.MustValidate()
	logger.Info("store ready", "driver", pcfg.GetDriver())
	return nil
}

func WithNotifier(_ context.Context, app *App) error {
	mcfg := app.Config().GetMail()
	logger := app.GetLogger("mailer")

	templates, err := mailer.LoadTemplates(mcfg.TemplatesDir)
	if err != nil {
		return err
	}
	templates.WithGlobal("site_name", mcfg.SiteName)

	switch mcfg.Transport {
	case config.MailTransportSMTP:
		transport := mailer.NewTransport(mailer.SMTPConfig{
			Host:     mcfg.Host,
			Port:     mcfg.Port,
			Username: mcfg.Username,
			Password: mcfg.Password,
			StartTLS: mcfg.StartTLS,
		})
		app.notifier = mailer.NewSMTPNotifier(transport, mcfg.From, templates).WithLogger(logger)
	default:
		app.notifier = mailer.NewLogNotifier(templates, logger)
	}

	logger.Info("notifier ready", "transport", mcfg.Transport)
	return nil
}

func WithMetrics(_ context.Context, app *App) error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := metrics.NewCollector(app.registry)
	app.sink = membership.MultiSink{collector, activityLogger(app.GetLogger("activity"))}

	addr := app.Config().Server.MetricsAddress
	if addr == "" {
		return nil
	}

	app.metrics = &http.Server{
		Addr:              addr,
		Handler:           metrics.SetupMetricsRoute(app.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.GetLogger("metrics").Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// activityLogger writes normalized activity records at debug level.
func activityLogger(logger glog.Logger) membership.ActivitySink {
	return membership.ActivitySinkFunc(func(_ context.Context, evt membership.ActivityEvent) error {
		logger.Debug("activity", activitymap.Normalize(evt).Fields()...)
		return nil
	})
}

func WithServices(_ context.Context, app *App) error {
	acfg := app.Config().GetAuth()
	lcfg := app.Config().GetLinks()

	sessions := membership.NewSessionService(
		[]byte(acfg.SigningKey),
		acfg.TokenExpiration,
		acfg.Issuer,
		acfg.Audience,
		app.GetLogger("sessions"),
	)

	services, err := membership.NewServices(membership.ServicesConfig{
		Store:    app.store,
		Notifier: app.notifier,
		Hasher:   membership.NewBcryptHasher(acfg.BcryptCost),
		Sessions: sessions,
		Links: membership.Links{
			BaseURL:           lcfg.BaseURL,
			SetPasswordPath:   lcfg.SetPasswordPath,
			ResetPasswordPath: lcfg.ResetPasswordPath,
		},
		AdminEmail: app.Config().GetMail().AdminEmail,
		Activity:   app.sink,
		Logger:     app.GetLogger("membership"),
	})
	if err != nil {
		return err
	}
	app.services = services
	return nil
}

func WithAdminAccount(ctx context.Context, app *App) error {
	acfg := app.Config().GetAuth()
	if acfg.AdminEmail == "" {
		return nil
	}

	account, created, err := membership.EnsureAdmin(ctx,
		app.store.Accounts(),
		membership.NewBcryptHasher(acfg.BcryptCost),
		acfg.AdminEmail,
		acfg.AdminPassword,
		acfg.AdminName,
	)
	if err != nil {
		return err
	}
	if created {
		app.GetLogger("app").Info("bootstrap admin created", "email", account.Email)
	}
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.Config().Server.Debug,
			StrictRouting:     false,
			BodyLimit:         1 << 20,
		}))
	})

	srv.Router().Get("/healthz", func(ctx router.Context) error {
		if err := app.store.Validate(); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		}
		return ctx.JSON(http.StatusOK, map[string]any{"status": "ok"})
	})

	membership.RegisterMembershipRoutes(srv.Router(),
		membership.WithControllerServices(app.services),
		membership.WithControllerLogger(app.GetLogger("http")),
		membership.WithControllerDebug(app.Config().Server.Debug),
	)

	app.srv = srv
	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
