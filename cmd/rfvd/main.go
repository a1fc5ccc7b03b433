package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/export"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
	"github.com/joseph-ayodele/rfv-segments/internal/server"
	"github.com/joseph-ayodele/rfv-segments/internal/session"
)

func main() {
	// Setup structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	actions := rfv.DefaultActions()
	if cfg.RFV.ActionsFile != "" {
		if actions, err = rfv.LoadActionTable(cfg.RFV.ActionsFile); err != nil {
			logger.Error("failed to load action table", "path", cfg.RFV.ActionsFile, "error", err)
			os.Exit(2)
		}
		logger.Info("action table loaded", "path", cfg.RFV.ActionsFile, "scores", len(actions))
	}

	store, err := session.Open(ctx, logger)
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close session store", "error", err)
		}
	}()

	handler := server.NewRFVHandler(server.HandlerConfig{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		PreviewRows:    cfg.Server.PreviewRows,
		TopScore:       cfg.RFV.TopScore,
		TopCustomers:   cfg.Server.TopCustomers,
		Sheet:          cfg.RFV.Sheet,
	}, rfv.NewPipeline(logger, actions), store, export.NewService(logger, export.WithMaxCached(cfg.Server.ExportCache)), logger)

	var origins []string
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		origins = strings.Split(v, ",")
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(server.RouterConfig{RFVHandler: handler, AllowOrigins: origins, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, hs := server.NewGRPCServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC health serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	server.SetServing(hs, true)

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	server.SetServing(hs, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
