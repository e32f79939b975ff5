package main

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/harborauth/go-identity"
	"github.com/harborauth/go-identity/adapters/rediscache"
	"github.com/harborauth/go-identity/mailer"
	"github.com/harborauth/go-identity/provider/oidc"
)

type App struct {
	config *identity.EnvConfig
	logger *glog.BaseLogger
	bunDB  *bun.DB
	repo   identity.RepositoryManager
	srv    *fiber.App
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	cfg, err := identity.NewConfigFromEnv()
	if err != nil {
		panic(err)
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(logLevel(cfg.GetLogLevel())),
		glog.WithName("identity"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		if err := app.srv.Listen(cfg.GetListenAddr()); err != nil {
			app.GetLogger("server").Error("listener stopped", "error", err)
		}
	}()

	WaitExitSignal()

	if err := app.srv.ShutdownWithTimeout(10 * time.Second); err != nil {
		app.GetLogger("server").Error("shutdown", "error", err)
	}
}

type persistenceConfig struct {
	debug bool
	dsn   string
}

func (p persistenceConfig) GetDebug() bool   { return p.debug }
func (p persistenceConfig) GetDSN() string   { return p.dsn }
func (p persistenceConfig) GetDriver() string { return sqliteshim.ShimName }
func (p persistenceConfig) GetServer() string { return "" }
func (p persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}
func (p persistenceConfig) GetOtelIdentifier() string { return "" }

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.config.GetDatabaseDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*identity.User)(nil))
	persistence.RegisterModel((*identity.ActivityLog)(nil))

	cfg := persistenceConfig{
		debug: app.config.GetDebug(),
		dsn:   app.config.GetDatabaseDSN(),
	}

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(identity.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = identity.NewRepositoryManager(client.DB())

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config
	users := app.repo.Users()
	activity := app.repo.Activity()

	var cache identity.TokenCache
	var sessions identity.SessionStore

	if addr := cfg.GetRedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		cache = rediscache.NewTokenCache(rdb)
		sessions = rediscache.NewSessionStore(rdb, cfg.GetSessionDuration())
	} else {
		// Single-process fallback for local development.
		cache = identity.NewMemoryTokenCache()
		sessions = identity.NewMemorySessionStore()
	}

	tokens := identity.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		app.GetLogger("identity:tokens"),
	)

	gate := identity.NewAccessGate(users, sessions, cache, tokens).
		WithLogger(app.GetLogger("identity:gate")).
		WithTTLs(cfg.GetSessionDuration(), cfg.GetTokenExpiration())

	local := identity.NewLocalStrategy(users, activity).
		WithLogger(app.GetLogger("identity:local"))
	fed := identity.NewFederatedStrategy(users, activity).
		WithLogger(app.GetLogger("identity:federated"))

	var issuer *identity.Issuer
	if cfg.GetSMTPHost() != "" {
		post, err := mailer.NewSMTPMailer(cfg)
		if err != nil {
			return err
		}
		issuer = identity.NewIssuer(users, post, gate, cfg.GetBaseURL()).
			WithLogger(app.GetLogger("identity:verification"))
	} else {
		issuer = identity.NewIssuer(users, noopMailer{log: app.GetLogger("identity:mail")}, gate, cfg.GetBaseURL()).
			WithLogger(app.GetLogger("identity:verification"))
	}

	var verifier identity.AssertionVerifier
	if cfg.GetJWKSEndpoint() != "" {
		v, err := oidc.NewVerifier(oidc.Config{
			JWKSEndpoint: cfg.GetJWKSEndpoint(),
			Issuer:       cfg.GetProviderIssuer(),
			Audience:     cfg.GetProviderAudience(),
		})
		if err != nil {
			return err
		}
		verifier = v
	}

	stats := identity.NewStatsService(activity, time.Local).
		WithLogger(app.GetLogger("identity:stats"))

	controller := identity.NewController(
		identity.WithControllerLogger(app.GetLogger("identity:http")),
		func(c *identity.Controller) *identity.Controller {
			c.Debug = cfg.GetDebug()
			c.Gate = gate
			c.Local = local
			c.Fed = fed
			c.Verifier = verifier
			c.Issuer = issuer
			c.Stats = stats
			c.Users = users
			c.Activity = activity
			return c
		},
	)

	srv := fiber.New(fiber.Config{
		AppName: "go-identity",
	})

	controller.RegisterRoutes(srv)

	app.srv = srv

	return nil
}

// noopMailer logs outgoing mail instead of delivering it.
type noopMailer struct {
	log glog.Logger
}

func (m noopMailer) Send(ctx context.Context, to, subject, html string) error {
	m.log.Info("mail suppressed, no SMTP host configured", "to", to, "subject", subject)
	return nil
}

func logLevel(level string) glog.Level {
	switch level {
	case "trace":
		return glog.Trace
	case "debug":
		return glog.Debug
	case "warn":
		return glog.Warn
	case "error":
		return glog.Error
	default:
		return glog.Info
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	return <-ch
}
