package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func newIngestCommand(deps Deps) *cobra.Command {
	var (
		manifestPath string
		faqPath      string
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the corpus from the seed and FAQ manifests",
		Long: `Fetches every seed source, extracts and chunks its text, embeds the
chunks into the vector store and rewrites the corpus file.
Do not run against storage that a server is using.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Ingestor == nil || deps.LoadSources == nil || deps.LoadFAQ == nil {
				return fmt.Errorf("ingest: %w", errNotConfigured)
			}

			var sources []domain.SourceItem
			if manifestPath != "" {
				items, err := deps.LoadSources(manifestPath)
				if err != nil {
					return err
				}
				sources = items
			}
			var faqs []domain.FAQItem
			if faqPath != "" {
				items, err := deps.LoadFAQ(faqPath)
				if err != nil {
					return err
				}
				faqs = items
			}
			if len(sources) == 0 && len(faqs) == 0 {
				return domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("nothing to ingest: pass --manifest and/or --faq"))
			}

			ingestor, release, err := deps.Ingestor(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			report, err := ingestor.Ingest(cmd.Context(), sources, faqs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal report: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Printf("seed chunks: %d\n", report.SeedChunks)
			cmd.Printf("faq chunks:  %d\n", report.FAQChunks)
			cmd.Printf("total:       %d\n", report.Total())
			for _, id := range report.SkippedItems {
				cmd.Printf("skipped: %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "seed sources manifest (YAML list)")
	cmd.Flags().StringVar(&faqPath, "faq", "", "FAQ manifest (YAML list)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
