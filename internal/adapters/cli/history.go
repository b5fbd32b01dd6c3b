package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(deps Deps) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent recorded interactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Interactions == nil {
				return fmt.Errorf("history: %w", errNotConfigured)
			}
			lister, release, err := deps.Interactions(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			items, err := lister.ListRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list interactions: %w", err)
			}
			if asJSON {
				data, err := json.MarshalIndent(items, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal interactions: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			if len(items) == 0 {
				cmd.Println("No interactions recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tROUTE\tDOCS\tMS\tQUESTION")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					it.CreatedAt.UTC().Format(time.RFC3339), it.Route, it.DocCount, it.DurationMS, it.Question)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of interactions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
