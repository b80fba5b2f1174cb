package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/config"
	"folio.dev/internal/content"
	"folio.dev/internal/httpapi"
	"folio.dev/internal/obs"
	"folio.dev/internal/seed"
	"folio.dev/internal/store/pg"
	"folio.dev/internal/stream"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default "+config.ConfigPath+")")
	flag.Parse()

	if err := run(*configPath); err != nil {
		obs.Logger().Error("fatal", "error", err.Error())
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	obs.SetLevel(cfg.LogLevel)
	logger := obs.Logger()

	// метрики и build info
	obs.Init()
	build := obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		deps    []httpapi.Pinger
		users   auth.UserStore     = auth.NewMemoryUserStore()
		items   content.Repository = content.NewMemoryRepository()
		entries audit.Store        = audit.NewMemoryStore()
		revoker auth.TokenRevoker  = auth.NewMemoryTokenRevoker()
		closers []func() error
	)

	// Postgres (если задан DSN); otherwise everything stays in memory
	if cfg.DatabaseURL != "" {
		store, err := pg.Open(cfg.DatabaseURL, pg.WithMaxConns(cfg.DatabaseMaxConns))
		if err != nil {
			return err
		}
		closers = append(closers, store.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = store.Ping(pingCtx)
		cancel()
		if err != nil {
			return err
		}
		users, items, entries = store.Users(), store.Content(), store.Audit()
		deps = append(deps, store)
		logger.Info("storage", "backend", "postgres")
	} else {
		logger.Info("storage", "backend", "memory")
	}

	if cfg.RedisAddr != "" {
		rr := auth.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		closers = append(closers, rr.Close)
		revoker = rr
		deps = append(deps, rr)
		logger.Info("token revocation", "backend", "redis", "addr", cfg.RedisAddr)
	}

	events := stream.New()
	auditLog := audit.NewLog(entries, audit.WithPublisher(events))

	tokens, err := auth.NewTokenCodec(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)
	if err != nil {
		return err
	}
	userSvc, err := auth.NewService(users, auditLog, tokens,
		auth.WithRevoker(revoker),
		auth.WithLoginDelay(cfg.LoginDelay),
		auth.WithPasswordRequired(cfg.RequirePassword),
		auth.WithAppBaseURL(cfg.AppBaseURL),
	)
	if err != nil {
		return err
	}
	contentSvc := content.NewService(items, auditLog)

	api := httpapi.New(httpapi.Options{
		Users:         userSvc,
		Content:       contentSvc,
		Audit:         auditLog,
		Stream:        events,
		Ready:         httpapi.ReadyProbe{Deps: deps},
		Version:       version,
		CORSOrigins:   cfg.CORSOrigins,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		AuthRateLimit: cfg.AuthRateLimit,
		AuthRateBurst: cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: /v1/audit/stream is long-lived
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	health := httpapi.NewGRPCServer(httpapi.ReadyProbe{Deps: deps})
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	go health.Watch(ctx, 5*time.Second)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", srv.Addr, "version", build.Version, "commit", build.Commit, "go", build.GoVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	// Seed data arrives after a simulated fetch; the service is ready once loaded.
	go func() {
		if cfg.SeedEnabled {
			if err := seed.Load(ctx, cfg.SeedDelay, time.Now().UTC(), seed.Targets{
				Users: userSvc, Content: contentSvc, Audit: auditLog,
			}); err != nil {
				errCh <- err
				return
			}
		} else if err := contentSvc.Load(ctx, nil); err != nil {
			errCh <- err
			return
		}
		obs.SetReady(true)
		health.Refresh(ctx)
		logger.Info("ready", "seeded", cfg.SeedEnabled)
	}()
	stopScheduler := contentSvc.StartScheduler(cfg.SchedulerInterval)

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("server error", "error", err.Error())
	}

	logger.Info("shutting down")
	obs.SetReady(false)
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	for _, c := range closers {
		_ = c()
	}
	logger.Info("stopped")
	return err
}
