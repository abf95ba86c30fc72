package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobscout/internal/export"
	"jobscout/internal/logging"
	"jobscout/internal/postings"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var phaseFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session's postings as markdown files",
		Long:  "Export a session's stored postings as one markdown file per posting, skipping filenames already present in the skip and current directories.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := postings.Open(cfg)
			if err != nil {
				return fmt.Errorf("open posting store: %w", err)
			}
			defer store.Close()

			phase := postings.Phase(phaseFlag)
			items, err := store.ItemsForPhase(cmd.Context(), args[0], phase)
			if err != nil {
				return err
			}
			// Enriched output is preferred; fall back to the filtered set when
			// the session never reached enrichment.
			if len(items) == 0 && phase == postings.PhaseEnriched {
				items, err = store.ItemsForPhase(cmd.Context(), args[0], postings.PhaseFiltered)
				if err != nil {
					return err
				}
			}
			if len(items) == 0 {
				return fmt.Errorf("session %s has no stored postings to export", args[0])
			}

			result, err := export.New(cfg, logging.NewNop()).Export(items)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d postings to %s (%d already present)\n",
				result.Written, result.Dir, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&phaseFlag, "phase", string(postings.PhaseEnriched), "Pipeline phase to export (collected, filtered, enriched)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
