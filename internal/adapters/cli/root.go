// Package cli implements the ragctl command tree.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

// InteractionLister reads the interaction log.
type InteractionLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Interaction, error)
}

// Deps builds the command dependencies lazily so that each subcommand only
// opens the backends it needs. Every builder returns a release func.
type Deps struct {
	Ingestor     func(ctx context.Context) (ports.CorpusIngestor, func(), error)
	Answerer     func(ctx context.Context) (ports.QuestionAnswerer, func(), error)
	Remote       func(ctx context.Context) (ports.QuestionAnswerer, func(), error)
	Interactions func(ctx context.Context) (InteractionLister, func(), error)
	LoadSources  func(path string) ([]domain.SourceItem, error)
	LoadFAQ      func(path string) ([]domain.FAQItem, error)
}

var errNotConfigured = errors.New("not configured")

func NewRootCommand(deps Deps, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate the AOK RAG assistant",
		Long:          `ragctl builds the retrieval corpus and asks questions against the guarded RAG pipeline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIngestCommand(deps),
		newAskCommand(deps),
		newHistoryCommand(deps),
	)
	return root
}
