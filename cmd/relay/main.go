package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"go-issue-relay/internal/application/facade"
	"go-issue-relay/internal/infrastructure/config"
	"go-issue-relay/internal/infrastructure/fanout"
	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/infrastructure/ratelimit"
	"go-issue-relay/internal/infrastructure/server"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/port/inbound"
	"go-issue-relay/internal/port/outbound"
)

const sessionCleanupInterval = 10 * time.Minute

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	addr := pflag.String("addr", "", "listen address, overrides BIND_HOST and PORT")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Host, cfg.Server.Port = splitAddr(*addr)
	}

	log := logger.NewLogrusLogger(&cfg.Log)

	ctx := context.Background()
	sctx := WithSignal(ctx)

	app, err := newApplication(sctx, cfg, log)
	if err != nil {
		log.Errorf("failed to start: %v", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

type Application struct {
	logger   logger.Logger
	httpSrv  server.Server
	hub      *hub.Hub
	relay    inbound.RelayUseCase
	sessions *session.Manager
	store    *session.SQLiteStore
	limiter  *ratelimit.Limiter
	bridge   *fanout.RedisBridge
	redis    *redis.Client

	shutdownTimeout time.Duration
}

func newApplication(ctx context.Context, cfg *config.Config, log logger.Logger) (*Application, error) {
	app := &Application{
		logger:          log.WithField("app", "relay"),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	// Start the hub first
	app.hub = hub.New(log)
	if err := app.hub.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("starting hub: %w", err)
	}

	client, err := gitlab.NewClient(gitlab.Config{
		BaseURL: cfg.GitLab.BaseURL,
		Token:   cfg.GitLab.Token,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	trackerFor := func(token string) outbound.IssueTracker { return client.WithToken(token) }

	oauth := gitlab.NewOAuth(gitlab.OAuthConfig{
		BaseURL:      cfg.GitLab.BaseURL,
		ClientID:     cfg.GitLab.ClientID,
		ClientSecret: cfg.GitLab.ClientSecret,
		RedirectURL:  cfg.GitLab.RedirectURI,
		Scopes:       cfg.GitLab.Scopes,
	})
	if !oauth.Enabled() {
		app.logger.Warn("GitLab OAuth credentials not configured, login is disabled")
	}

	app.store, err = session.OpenSQLiteStore(cfg.Session.DBPath)
	if err != nil {
		return nil, err
	}
	app.sessions = session.NewManager(
		app.store,
		session.NewTokenSigner(cfg.Session.Secret, cfg.Session.TTL),
		session.ManagerOptions{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     isHTTPS(cfg.Server.PublicURL),
		},
		log,
	)

	if cfg.RateLimit.RequestsPerSecond > 0 {
		app.limiter = ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	var publisher outbound.EventPublisher
	if cfg.Redis.Enabled() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		app.bridge = fanout.NewRedisBridge(app.redis, cfg.Redis.Channel, log)
		publisher = app.bridge
	}

	app.relay = facade.NewRelayApplicationService(app.hub, publisher, log)
	snapshots := facade.NewSnapshotApplicationService(
		trackerFor,
		inbound.Credentials{Token: cfg.GitLab.Token, ProjectID: cfg.GitLab.ProjectID},
		log,
	)
	issues := facade.NewIssueApplicationService(
		trackerFor,
		cfg.GitLab.ProjectID,
		facade.WebhookSettings{PublicURL: cfg.Server.PublicURL, Secret: cfg.Webhook.Secret},
		log,
	)

	router := InitRouter(RouterDeps{
		Hub:                 app.hub,
		Relay:               app.relay,
		Snapshots:           snapshots,
		Issues:              issues,
		OAuth:               oauth,
		Sessions:            app.sessions,
		TrackerFor:          trackerFor,
		Limiter:             app.limiter,
		WebhookSecret:       cfg.Webhook.Secret,
		WebhookMaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		SendBuffer:          cfg.Hub.SendBuffer,
		StaticDir:           cfg.Server.StaticDir,
	}, log)

	app.httpSrv = server.NewHTTPServer(router, server.Options{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, log)

	return app, nil
}

func (app *Application) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		return app.sessions.RunCleanup(ctx, sessionCleanupInterval)
	})

	if app.limiter != nil {
		eg.Go(func() error {
			return app.limiter.Run(ctx)
		})
	}

	if app.bridge != nil {
		eg.Go(func() error {
			return app.bridge.Run(ctx, app.relay.Deliver)
		})
	}

	eg.Go(func() error {
		<-ctx.Done()

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.shutdownTimeout,
		)
		defer cancel()

		// Stop hub first so streaming handlers return
		if err := app.hub.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}

		return app.httpSrv.Stop(gracefulshutdownCtx)
	})

	return eg.Wait()
}

// Close releases the stores opened by newApplication.
func (app *Application) Close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warnf("failed to close redis client: %v", err)
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Warnf("failed to close session store: %v", err)
		}
	}
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
