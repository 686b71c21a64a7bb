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

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/invoicegate/adapters/events"
	"github.com/layer-3/invoicegate/adapters/store"
	"github.com/layer-3/invoicegate/adapters/tokenizer"
	"github.com/layer-3/invoicegate/adapters/wallets"
	"github.com/layer-3/invoicegate/internal/config"
	"github.com/layer-3/invoicegate/internal/logging"
	"github.com/layer-3/invoicegate/metrics"
	"github.com/layer-3/invoicegate/ports"
	"github.com/layer-3/invoicegate/service"
	transport "github.com/layer-3/invoicegate/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if flags.logLevel != "" {
				cfg.LogLevel = flags.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides HTTP_ADDR")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	wmLogger := logging.NewWatermillAdapter(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		challenges    ports.ChallengeStore
		invalidations ports.Store
		publisher     message.Publisher
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}

		challenges = store.NewRedisChallengeStore(redisClient, nil)
		invalidations = store.NewRedisRevocationStore(redisClient)
		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		logger.Info("using redis stores")
	} else {
		challenges = store.NewMemoryChallengeStore(nil)
		invalidations = store.NewMemoryRevocationStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		logger.Warn("REDIS_URL not set, challenges and revocations are kept in memory")
	}
	defer publisher.Close()

	var repo ports.WalletRepository
	if cfg.DatabaseURL != "" {
		pg, err := wallets.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		repo = pg
		logger.Info("using postgres wallet repository")
	} else {
		repo = wallets.NewMemoryRepository()
		logger.Warn("DATABASE_URL not set, wallets are kept in memory")
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithAppName(cfg.AppName),
		service.WithTTLs(cfg.ChallengeTTL, cfg.AccessTTL, cfg.RefreshTTL),
	}
	eventPub := events.NewWatermillPublisher(publisher)
	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret)),
		invalidations, challenges, repo, eventPub, opts...,
	)
	walletService := service.NewWalletService(repo, challenges, eventPub, opts...)

	gin.SetMode(gin.ReleaseMode)
	router := transport.SetupRouter(authService, walletService, transport.Options{
		Logger:         logger,
		Gatherer:       reg,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.NewHandler(router, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		authService.RunChallengeSweeper(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
