package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func newAskCommand(deps Deps) *cobra.Command {
	var (
		viaNATS bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question",
		Long:  `Runs the question through the guardrail router and prints the answer with its sources.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			build := deps.Answerer
			if viaNATS {
				build = deps.Remote
			}
			if build == nil {
				return fmt.Errorf("ask: %w", errNotConfigured)
			}

			answerer, release, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			resp, err := answerer.Invoke(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal response: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			printResponse(cmd, resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaNATS, "nats", false, "send the question to a worker over NATS")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func printResponse(cmd *cobra.Command, resp *domain.Response) {
	cmd.Println(resp.Answer)
	// generated answers already carry their sources block
	if resp.Route == domain.RouteGenerated || len(resp.Citations) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Quellen:")
	for _, c := range resp.Citations {
		cmd.Println(c)
	}
}
