// Command practice starts the local practice app that the practice-login
// scenario and integration tests drive.
// Usage: go run ./cmd/practice [port]
// Default port: 9999
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/practice"
)

func main() {
	logging.Setup(os.Getenv("UIFLOW_LOG_LEVEL"), "")
	logger := logging.NewStdoutLogger("practice")
	cfg := practice.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			logger.Error("invalid port", logging.Field{Key: "port", Value: os.Args[1]})
			os.Exit(2)
		}
		cfg.Port = port
	}

	srv, err := practice.NewServer(cfg, logger)
	if err != nil {
		logger.Error("practice server", logging.Err(err))
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("practice server stopped", logging.Err(err))
		os.Exit(1)
	}
}
