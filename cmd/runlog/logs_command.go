package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"runlog/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Fetch the records of a flow or task run",
		Long: "Fetch every log record attributed to the given run identifier, " +
			"from the remote log API when one is configured, otherwise from the " +
			"local archive.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runID := strings.TrimSpace(args[0])
			if runID == "" {
				return fmt.Errorf("run id is required")
			}

			ship := cfg.Logging.Handlers.Shipping
			client, err := logs.NewClient(ship.URL, ship.APIKey)
			if err != nil {
				return fmt.Errorf("build log API client: %w", err)
			}
			source := logs.Source{API: client, ArchiveDir: cfg.Logging.Archive.Dir}

			records, err := source.FetchRun(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("fetch run logs: %w", err)
			}

			var out io.Writer = cmd.OutOrStdout()
			if target := strings.TrimSpace(outputPath); target != "" {
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer file.Close()
				out = file
			}

			if asJSON {
				return logs.WriteJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No records for run %s\n", runID)
				return nil
			}
			return logs.WriteText(out, runID, records)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write records to a file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit records as a JSON array")
	return cmd
}
