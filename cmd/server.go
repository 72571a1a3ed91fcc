package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobboard/internal/alerts"
	"jobboard/internal/api"
	"jobboard/internal/config"
	"jobboard/internal/identity"
	"jobboard/internal/notifier"
	"jobboard/internal/ratelimit"
	"jobboard/internal/scheduler"
	"jobboard/internal/search"
	"jobboard/internal/storage"
	"jobboard/internal/subscription"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// alertScheduler 由 scheduler.Scheduler 实现。
type alertScheduler interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) (alerts.Report, error)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// appDeps 运行所需的组件。
type appDeps struct {
	sched   alertScheduler
	handler http.Handler
	logger  *zap.Logger
}

type depsBuilder func(config.AppConfig) (appDeps, func(), error)

func main() {
	once := flag.Bool("once", false, "run the alert worker once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		report, err := runOnceManual(ctx, cfg, buildDeps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run alerts: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("processed=%d sent=%d no_match=%d no_email=%d failed=%d\n",
			report.Processed, report.Sent, report.NoMatch, report.NoEmail, len(report.Failures))
		return
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           deps.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	deps.logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("timezone", cfg.Alerts.Timezone))
	if err := runServer(ctx, srv, deps.sched, config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second)); err != nil {
		deps.logger.Error("server stopped", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

// runServer 并行运行 HTTP 服务与调度器，ctx 取消后优雅关闭。
func runServer(ctx context.Context, srv httpServer, sched alertScheduler, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// runOnceManual 构建依赖后执行一次告警处理。
func runOnceManual(ctx context.Context, cfg config.AppConfig, build depsBuilder) (alerts.Report, error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return alerts.Report{}, fmt.Errorf("build deps: %w", err)
	}
	defer cleanup()
	return deps.sched.RunOnce(ctx)
}

func buildDeps(cfg config.AppConfig) (appDeps, func(), error) {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return appDeps{}, func() {}, err
	}

	store, err := storage.NewStore(cfg.Database.DSN)
	if err != nil {
		_ = logger.Sync()
		return appDeps{}, func() {}, fmt.Errorf("init store: %w", err)
	}
	closers := []func(){
		func() { _ = store.Close() },
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
		_ = logger.Sync()
	}

	sender, err := notifier.NewSender(cfg.Email, logger)
	if err != nil {
		cleanup()
		return appDeps{}, func() {}, fmt.Errorf("init email sender: %w", err)
	}

	loc := cfg.Location()
	worker := alerts.NewWorker(store, sender, alerts.Config{
		From:     cfg.Alerts.From,
		Links:    cfg.Alerts.Links,
		Location: loc,
	}, logger)
	sched, err := scheduler.NewScheduler(worker, cfg.Alerts.Schedule, loc, logger)
	if err != nil {
		cleanup()
		return appDeps{}, func() {}, fmt.Errorf("init scheduler: %w", err)
	}

	var attempts ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		attempts = ratelimit.NewRedisStore(rdb, cfg.Redis.Prefix)
	}
	limiter := ratelimit.NewLimiter(attempts, cfg.RateLimit.Limit, config.Duration(cfg.RateLimit.Window, ratelimit.DefaultWindow))

	var resetter api.PasswordResetter
	if cfg.Backend.URL != "" {
		client, err := identity.NewClient(cfg.Backend, nil)
		if err != nil {
			logger.Warn("password reset disabled", zap.Error(err))
		} else {
			resetter = client
		}
	}

	handler := api.NewHandler(api.Deps{
		Runner:        sched,
		Jobs:          store,
		Alerts:        subscription.NewService(store, cfg.Subscription, loc),
		Limiter:       limiter,
		Resetter:      resetter,
		Corrector:     search.NewCorrector(cfg.Search.ExtraTerms...),
		ResetRedirect: cfg.RateLimit.ResetRedirect,
		Logger:        logger,
	})

	return appDeps{sched: sched, handler: handler, logger: logger}, cleanup, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
