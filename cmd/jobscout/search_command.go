package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobscout/internal/daemon"
	"jobscout/internal/pipeline"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		queries   []string
		sites     []string
		countries []string
		hoursOld  int
		results   int
		remote    bool
		watch     bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Start a search session",
		Long:  "Start a search session on the daemon. Flags omitted here fall back to the [search] section of the configuration file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.SearchRequest{
				Queries:       queries,
				Sites:         sites,
				Countries:     countries,
				HoursOld:      hoursOld,
				ResultsWanted: results,
				RemoteOnly:    remote,
			}
			return ctx.withClient(func(client *daemon.Client) error {
				sessionID, err := client.StartSearch(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOut && !watch {
					return writeJSON(cmd, map[string]string{"sessionId": sessionID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s started\n", sessionID)
				if !watch {
					return nil
				}
				return watchProgress(cmd, client, sessionID, jsonOut)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&queries, "query", "q", nil, "Search query (repeatable)")
	cmd.Flags().StringSliceVarP(&sites, "site", "s", nil, "Job board to search (repeatable)")
	cmd.Flags().StringSliceVar(&countries, "country", nil, "Country to search in (repeatable)")
	cmd.Flags().IntVar(&hoursOld, "hours-old", 0, "Only postings newer than this many hours")
	cmd.Flags().IntVar(&results, "results", 0, "Results wanted per query")
	cmd.Flags().BoolVar(&remote, "remote", false, "Remote positions only")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll progress until the session finishes")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")

	return cmd
}

// watchProgress polls the session until it reaches a terminal status.
func watchProgress(cmd *cobra.Command, client *daemon.Client, sessionID string, jsonOut bool) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		progress, err := client.Progress(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if jsonOut {
			if err := writeJSON(cmd, progress); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), renderProgress(progress))
		}
		switch progress.Status {
		case pipeline.StatusCompleted, pipeline.StatusStopped, pipeline.StatusError:
			return nil
		case pipeline.StatusPaused:
			fmt.Fprintln(cmd.OutOrStdout(), "session paused; resume with `jobscout resume "+sessionID+"`")
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}
