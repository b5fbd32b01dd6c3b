package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/aok-rag-assistant/internal/adapters/cli"
	"github.com/kirillkom/aok-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/aok-rag-assistant/internal/config"
	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/manifest"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/aok-rag-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// stdout is reserved for command output
	logger := logging.Install(os.Stderr, "ragctl", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := cli.Deps{
		LoadSources: manifest.LoadSources,
		LoadFAQ:     manifest.LoadFAQ,
		Ingestor: func(context.Context) (ports.CorpusIngestor, func(), error) {
			ing, err := bootstrap.NewIngestor(cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return ing.UseCase, func() { _ = ing.Close() }, nil
		},
		Answerer: func(ctx context.Context) (ports.QuestionAnswerer, func(), error) {
			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return app.Answerer, app.Close, nil
		},
		Remote: func(context.Context) (ports.QuestionAnswerer, func(), error) {
			queue, err := nats.New(cfg.NATSURL, nats.Options{
				Subject:            cfg.NATSSubject,
				QueueGroup:         cfg.NATSQueue,
				ResilienceExecutor: bootstrap.NewExecutor(cfg, logger, nil),
				Logger:             logger,
			})
			if err != nil {
				return nil, nil, err
			}
			return remoteAnswerer{queue: queue}, queue.Close, nil
		},
		Interactions: func(ctx context.Context) (cli.InteractionLister, func(), error) {
			if cfg.PostgresDSN == "" {
				return nil, nil, domain.WrapError(domain.ErrConfiguration, "history", fmt.Errorf("POSTGRES_DSN is not set"))
			}
			db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
			if err != nil {
				return nil, nil, err
			}
			return postgres.NewInteractionRepository(db), func() { _ = db.Close() }, nil
		},
	}

	root := cli.NewRootCommand(deps, version)
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type remoteAnswerer struct {
	queue *nats.Queue
}

func (r remoteAnswerer) Invoke(ctx context.Context, question string) (*domain.Response, error) {
	return r.queue.Ask(ctx, question)
}
