package main

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/aok-rag-assistant/internal/adapters/mcp"
	"github.com/kirillkom/aok-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/aok-rag-assistant/internal/config"
	"github.com/kirillkom/aok-rag-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLoggerTo(os.Stderr, "mcp", "error").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.Install(os.Stderr, "mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(app.Answerer, logger, version, cfg.RequestTimeout())
	logger.Info("mcp_stdio_serving", "version", version)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_serve_error", "error", err)
	}
}
