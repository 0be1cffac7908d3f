package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	ingestpb "github.com/devicehub/devicehub/pkg/ingest"
	"github.com/devicehub/devicehub/server/internal/api"
	"github.com/devicehub/devicehub/server/internal/broadcast"
	"github.com/devicehub/devicehub/server/internal/config"
	"github.com/devicehub/devicehub/server/internal/ingest"
	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
	"github.com/devicehub/devicehub/server/internal/router"
	"github.com/devicehub/devicehub/server/internal/session"
	"github.com/devicehub/devicehub/server/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", true, "reload log_level when the config file changes")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("devicehub-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Level())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"log_level", cfg.Server.LogLevel,
		"endpoints", len(cfg.Server.Endpoints),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *watch {
		go watchConfig(ctx, *configPath, cfg, level)
	}

	// Registry, metrics and broadcast engine are shared by every surface.
	reg := registry.New()
	m := metrics.New()
	m.RegisterTopicGauge(reg.Len)
	eng := broadcast.New(reg, m)

	ws := cfg.Server.WebSocket
	acceptor := transport.NewAcceptor(transport.Options{
		ReadLimit:      ws.ReadLimit,
		WriteTimeout:   ws.WriteTimeout,
		PongWait:       ws.PongWait,
		SendBuffer:     ws.SendBuffer,
		AllowedOrigins: ws.AllowedOrigins,
	})
	hub := session.NewHub(reg, eng, m, session.WebSocketAcceptor(acceptor))
	go hub.Run(ctx)

	// gRPC ingest for backend publishers.
	var grpcSrv *grpc.Server
	if cfg.Server.GRPCPort != 0 {
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(ingest.LoggingInterceptor()))
		ingestpb.Register(grpcSrv, ingest.New(eng))
		reflection.Register(grpcSrv)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port",
				"port", cfg.Server.GRPCPort, "err", err)
			os.Exit(1)
		}
		go func() {
			slog.Info("gRPC ingest listening", "port", cfg.Server.GRPCPort)
			if err := grpcSrv.Serve(lis); err != nil {
				slog.Error("gRPC server stopped", "err", err)
			}
		}()
	}

	roles := router.Roles(cfg.Server.Endpoints)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: router.New(hub, roles, api.NewHandler(reg, eng, hub), m),
		// Sessions run on the request context, so shutdown reaches them too.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		for _, r := range roles {
			slog.Info("endpoint", "role", r.Name, "path", r.Path, "actions", r.Actions)
		}
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("devicehub-server shutting down", "sessions", hub.Count())

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	hub.CloseAll()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	if err := hub.Wait(shutdownCtx); err != nil {
		slog.Warn("sessions still open at shutdown deadline", "sessions", hub.Count(), "err", err)
	}
	slog.Info("devicehub-server stopped")
}

// watchConfig applies log_level changes live and reports any other change
// as needing a restart.
func watchConfig(ctx context.Context, path string, current *config.Config, level *slog.LevelVar) {
	err := config.Watch(ctx, path, func(updated *config.Config) {
		level.Set(updated.Server.Level())
		if changed := config.RestartRequired(current, updated); len(changed) > 0 {
			slog.Warn("config: changes take effect after restart", "settings", changed)
		}
	})
	if err != nil {
		slog.Error("config: watch failed", "path", path, "err", err)
	}
}
