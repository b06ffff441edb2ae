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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/five82/cubespace/internal/docserver"
	"github.com/five82/cubespace/internal/logging"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:7490", "listen address")
	dbPath := flag.String("db", "cubespace.db", "sqlite database path (\":memory:\" for none)")
	identityName := flag.String("identity-name", "", "profile name returned by the identity endpoint (empty disables it)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "text or json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logging.New(os.Stdout, logging.Config{Level: *logLevel, Format: *logFormat})

	repo, err := docserver.OpenRepository(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cubespace-store: %v\n", err)
		return 1
	}
	defer repo.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := docserver.New(docserver.Options{
		Repository:   repo,
		Logger:       log,
		Registry:     reg,
		IdentityName: *identityName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cubespace-store: %v\n", err)
		return 1
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", logging.String("addr", *addr), logging.String("db", *dbPath))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", logging.Err(err))
			return 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	srv.CloseFeeds()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "shutdown", logging.Err(err))
	}
	log.Info(shutdownCtx, "stopped")
	return 0
}
