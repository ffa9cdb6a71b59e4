package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	grpcapi "github.com/wyfcoding/optionescrow/internal/options/interfaces/grpc"
	httpapi "github.com/wyfcoding/optionescrow/internal/options/interfaces/http"
	"github.com/wyfcoding/optionescrow/internal/options/scheduler"
	"github.com/wyfcoding/optionescrow/pkg/config"
	"github.com/wyfcoding/optionescrow/pkg/middleware"
	"github.com/wyfcoding/optionescrow/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, log)
	},
}

func serve(parent context.Context, cfg *config.Config, log *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	limit := ratelimit.PerSecond(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.GinRequestID(), middleware.GinRecovery(), middleware.GinLogging(c.metrics))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.GinRateLimit(c.limiter, limit))
	}
	httpapi.NewHandler(c.options, c.custody).RegisterRoutes(r)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(c.metrics.Handler()))
	}
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      r,
		ReadTimeout:  config.Seconds(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.HTTP.WriteTimeout),
	}

	// gRPC
	interceptors := []grpc.UnaryServerInterceptor{middleware.GRPCRecovery(), middleware.GRPCLogging(c.metrics)}
	if cfg.RateLimit.Enabled {
		interceptors = append(interceptors, middleware.GRPCRateLimit(c.limiter, limit))
	}
	grpcSrv, health := grpcapi.NewGRPCServer(c.options,
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams),
	)

	// 定时任务
	sched := scheduler.New(log)
	var relayer scheduler.Relayer
	if c.relay != nil {
		relayer = c.relay
	} else {
		log.Info("kafka brokers not configured, outbox relay disabled")
	}
	if err := scheduler.Register(sched, scheduler.Config{
		OutboxRelay: cfg.Scheduler.OutboxRelay,
		ExpirySweep: cfg.Scheduler.ExpirySweep,
		BatchSize:   cfg.Scheduler.BatchSize,
	}, c.options, relayer); err != nil {
		return err
	}
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return err
		}
		log.Info("gRPC server starting", "addr", cfg.GRPC.Addr())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		log.Info("HTTP server starting", "addr", cfg.HTTP.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers")
		health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Warn("scheduler did not stop in time", "error", err)
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
