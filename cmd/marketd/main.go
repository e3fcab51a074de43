package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketd/audit"
	"marketd/config"
	"marketd/core"
	"marketd/core/events"
	"marketd/observability"
	"marketd/observability/logging"
	"marketd/rpc"
	"marketd/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("marketd", cfg.Env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	auditSink, err := audit.Open(cfg.AuditDriver, cfg.AuditDSN, logger)
	if err != nil {
		logger.Error("Failed to open audit sink", slog.Any("error", err))
		os.Exit(1)
	}

	stream := rpc.NewStream()
	emitter := events.NewMultiEmitter(observability.NewMetricsEmitter(), auditSink, stream)
	node := core.NewNode(db, emitter)

	server := rpc.NewServer(node, logger, rpc.Options{
		AdminToken: cfg.AdminToken,
		JWTSecret:  cfg.JWTSecret,
		Stream:     stream,
	})

	httpSrv := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server", "address", cfg.RPCAddress)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Error("Failed to shut down cleanly", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server exited", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
