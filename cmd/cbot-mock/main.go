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

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"cbot/internal/logging"
	"cbot/internal/mockbackend"
)

func main() {
	fs := pflag.NewFlagSet("cbot-mock", pflag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:5000", "listen address")
	supervisionEvery := fs.Int("supervision-interval", 0, "assistant turns between supervision events (0 keeps the default)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "cbot-mock: %v\n", err)
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "cbot-mock: %v\n", err)
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(*logLevel))
	opts := []mockbackend.Option{mockbackend.WithLogger(logger)}
	if *supervisionEvery > 0 {
		opts = append(opts, mockbackend.WithSupervisionInterval(*supervisionEvery))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, *addr, mockbackend.New(opts...).Handler(), logger); err != nil {
		logger.Error("mock_backend_failed", logging.F("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, addr string, handler http.Handler, logger logging.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock_backend_listening", logging.F("addr", "http://"+addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
