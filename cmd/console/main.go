package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-auth-state/activitymap"
	"github.com/goliatone/go-auth-state/cmd/console/config"
	"github.com/goliatone/go-auth-state/provider/gotrue"
	"github.com/goliatone/go-auth-state/provider/local"
	"github.com/goliatone/go-auth-state/repository"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *gconfig.Container[*config.BaseConfig]
	bunDB    *bun.DB
	provider authstate.SessionProvider
	store    *authstate.Store
	guard    *authstate.Guard
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

// LoggerProvider exposes the glog loggers to the auth packages
func (a *App) LoggerProvider() authstate.LoggerProvider {
	return authstate.LoggerProviderFunc(func(name string) authstate.Logger {
		return a.GetLogger(name)
	})
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("console"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{})
	cfg.WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithProvider(ctx, app); err != nil {
		panic(err)
	}

	WithAuthState(ctx, app)
	WithHTTPServer(app)

	addr := app.Config().GetServer().GetAddress()
	app.GetLogger("console").Info("serving console", "address", addr)
	go app.srv.Serve(addr)

	sig := WaitExitSignal()
	app.GetLogger("console").Info("shutting down", "signal", sig.String())

	app.store.Close()
	if err := app.bunDB.Close(); err != nil {
		app.GetLogger("console").Error("close database", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.Config().GetPersistence()

	db, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*repository.UserModel)(nil))
	persistence.RegisterModel((*repository.SessionModel)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(repository.GetMigrationsFS(), repository.MigrationsDir)
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel(repository.MigrationsDir),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		app.GetLogger("persistence").Info("migrations applied", "report", report.String())
	}

	app.bunDB = client.DB()
	return nil
}

func WithProvider(ctx context.Context, app *App) error {
	cfg := app.Config().GetAuth()
	storage := repository.NewSessionStore(app.bunDB, app.Config().GetPersistence().GetSessionKey())

	switch cfg.GetProvider() {
	case config.ProviderGoTrue:
		client, err := gotrue.New(gotrue.Config{
			URL:     cfg.GetGoTrue().GetURL(),
			APIKey:  cfg.GetGoTrue().GetAPIKey(),
			Storage: storage,
			Logger:  app.GetLogger("auth:gotrue"),
		})
		if err != nil {
			return err
		}
		app.provider = client

	case config.ProviderLocal:
		lcfg := cfg.GetLocal()
		users := repository.NewUserRepository(app.bunDB)

		bootstrap := NewBootstrapAdminHandler(users, app.GetLogger("auth:bootstrap"))
		if err := bootstrap.Execute(ctx, BootstrapAdminMessage{
			Email:    lcfg.GetAdminEmail(),
			Password: lcfg.GetAdminPassword(),
			Role:     authstate.RoleAdmin,
		}); err != nil {
			return err
		}

		provider, err := local.New(users, local.Config{
			SigningKey: []byte(lcfg.GetSigningKey()),
			Issuer:     lcfg.GetIssuer(),
			TokenTTL:   lcfg.GetTokenTTL(),
			Storage:    storage,
			Logger:     app.GetLogger("auth:local"),
		})
		if err != nil {
			return err
		}
		app.provider = provider

	default:
		return errors.New("unknown auth provider "+cfg.GetProvider(), errors.CategoryValidation)
	}

	return nil
}

func WithAuthState(ctx context.Context, app *App) {
	activity := app.GetLogger("auth:activity")

	app.store = authstate.NewStore(app.provider,
		authstate.WithLoggerProvider(app.LoggerProvider()),
		authstate.WithInitContext(ctx),
		authstate.WithActivitySink(authstate.ActivitySinkFunc(func(ctx context.Context, event authstate.ActivityEvent) error {
			activity.Info("auth activity", activitymap.Normalize(event).Fields()...)
			return nil
		})),
	)
}

func WithHTTPServer(app *App) {
	cfg := app.Config().GetAuth()

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	controller := authstate.NewHTTPController(app.store, authstate.HTTPConfig{
		PathPrefix:      cfg.GetPathPrefix(),
		DefaultRedirect: cfg.GetDefaultRedirect(),
		SettleTimeout:   cfg.GetSettleTimeout(),
		Logger:          app.GetLogger("auth:http"),
	})
	controller.RegisterRoutes(srv.Router().Group(controller.PathPrefix()))

	app.guard = authstate.NewGuard(app.store,
		authstate.WithLoginPath(controller.LoginPath()),
		authstate.WithGuardLoggerProvider(app.LoggerProvider()),
	)

	ProtectedRoutes(srv.Router(), app.guard)
	FallbackRoutes(srv.Router(), controller.LoginPath())

	app.srv = srv
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
