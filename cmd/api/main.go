package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/JadsonMattos/vigia-pix/internal/application"
	appai "github.com/JadsonMattos/vigia-pix/internal/application/ai"
	appamend "github.com/JadsonMattos/vigia-pix/internal/application/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/config"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ai"
	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/geofence"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
	aiopenai "github.com/JadsonMattos/vigia-pix/internal/infra/ai/openai"
	"github.com/JadsonMattos/vigia-pix/internal/infra/cache"
	"github.com/JadsonMattos/vigia-pix/internal/infra/ceis"
	mysqlp "github.com/JadsonMattos/vigia-pix/internal/infra/db/mysql"
	"github.com/JadsonMattos/vigia-pix/internal/infra/db/postgres"
	"github.com/JadsonMattos/vigia-pix/internal/infra/db/sqlite"
	"github.com/JadsonMattos/vigia-pix/internal/infra/httpserver"
	"github.com/JadsonMattos/vigia-pix/internal/infra/invoice"
	"github.com/JadsonMattos/vigia-pix/internal/infra/news"
	"github.com/JadsonMattos/vigia-pix/internal/infra/notify"
	minioStore "github.com/JadsonMattos/vigia-pix/internal/infra/storage"
	"github.com/JadsonMattos/vigia-pix/internal/infra/transferegov"
	"github.com/JadsonMattos/vigia-pix/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkers := map[string]middleware.HealthChecker{}

	// connect database
	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}

	// ledger: load and verify the persisted chain before serving
	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		return fmt.Errorf("ledger dir: %w", err)
	}
	blocks, err := sqlite.NewBlockStore(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	defer blocks.Close()
	chain := ledger.New(blocks, ledger.WithLogger(logger.With("component", "ledger")))
	if err := chain.Load(ctx); err != nil {
		var ierr *ledger.IntegrityError
		if !errors.As(err, &ierr) {
			return fmt.Errorf("ledger load: %w", err)
		}
		// keep serving; /health and /v1/ledger/verify report the break
		logger.Error("ledger failed verification at start-up", "first_broken_index", ierr.Index, "reason", ierr.Reason)
	}
	logger.Info("ledger loaded", "blocks", chain.Len(), "path", cfg.Ledger.Path)
	checkers["ledger"] = chain

	validator := geofence.NewValidator(cfg.Analysis.ToleranceKM, geofence.NewGazetteer(cfg.Analysis.CapitalFallback))
	svc := appamend.NewService(repo, chain, validator, logger)
	svc.Clock = application.SystemClock{}
	svc.EnrichmentTimeout = cfg.Analysis.EnrichmentTimeout
	svc.BatchConcurrency = cfg.Analysis.BatchConcurrency
	svc.BatchItemTimeout = cfg.Analysis.BatchItemTimeout

	// AI: optional, keyword fallbacks otherwise
	var aiClient ai.Client
	if cfg.OpenAI.APIKey != "" {
		if cfg.OpenAI.BaseURL != "" {
			oc := goopenai.DefaultConfig(cfg.OpenAI.APIKey)
			oc.BaseURL = cfg.OpenAI.BaseURL
			aiClient = aiopenai.NewClientWithConfig(oc, cfg.OpenAI.Model)
		} else {
			aiClient = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		}
	}
	aiSvc := appai.NewService(aiClient, logger)
	svc.Classifier = aiSvc
	svc.Invoices = invoice.NewAnalyzer(aiSvc, logger)

	// plan source, cached in redis when available
	var plans amendments.PlanSource
	if cfg.Transferegov.Enabled {
		plans = transferegov.NewClient(transferegov.Config{
			BaseURL:    cfg.Transferegov.BaseURL,
			Timeout:    cfg.Transferegov.Timeout,
			RatePerSec: cfg.Transferegov.RatePerSec,
			Burst:      cfg.Transferegov.Burst,
			RetryCount: cfg.Transferegov.RetryCount,
			RetryDelay: cfg.Transferegov.RetryDelay,
		})
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis connect error: %w", err)
		}
		defer rdb.Close()
		checkers["redis"] = middleware.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		if plans != nil {
			plans = cache.NewPlanCache(plans, rdb, cfg.Redis.PlanTTL, logger)
		}
		svc.Notifier = notify.NewRedisNotifier(rdb, cfg.Redis.Channel)
	}
	svc.Plans = plans

	if cfg.News.Enabled {
		svc.News = news.NewClient(news.Config{
			BaseURL:  cfg.News.BaseURL,
			Timeout:  cfg.News.Timeout,
			Limit:    cfg.News.Limit,
			DaysBack: cfg.News.DaysBack,
		})
	}

	if cfg.Ceis.Enabled {
		svc.Sanctions = ceis.NewClient(ceis.Config{
			BaseURL:    cfg.Ceis.BaseURL,
			APIKey:     cfg.Ceis.APIKey,
			Timeout:    cfg.Ceis.Timeout,
			RatePerSec: cfg.Ceis.RatePerSec,
		})
	}

	// init minio
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init error: %w", err)
		}
		svc.Photos = store
		checkers["storage"] = store
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Run(ctx.Done())

	handler, err := httpserver.NewRouter(httpserver.Options{
		Service:        svc,
		Logger:         logger,
		Checkers:       checkers,
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr,
			"plans", svc.Plans != nil, "news", svc.News != nil, "ceis", svc.Sanctions != nil,
			"ai", aiSvc.Enabled(), "photos", svc.Photos != nil, "notify", svc.Notifier != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (*sql.DB, amendments.Repository, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect error: %w", err)
		}
		if cfg.Database.Migrate {
			if err := mysqlp.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("mysql migrate error: %w", err)
			}
		}
		return db, mysqlp.NewAmendmentRepository(db), nil
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect error: %w", err)
		}
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("postgres migrate error: %w", err)
			}
		}
		return db, postgres.NewAmendmentRepository(db), nil
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", "vigia-pix")
}
