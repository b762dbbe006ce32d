package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq/internal/ui"
)

var metricsCmd = &cobra.Command{
	Use:     "metrics",
	Short:   "Show queue metrics",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		m := client.Metrics()
		if jsonOutput {
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "total\t%d\n", m.TotalEvents)
		fmt.Fprintf(w, "pending\t%d\n", m.PendingEvents)
		fmt.Fprintf(w, "synced\t%s\n", ui.RenderGood(fmt.Sprintf("%d", m.SyncedEvents)))
		fmt.Fprintf(w, "failed\t%s\n", ui.RenderBad(fmt.Sprintf("%d", m.FailedEvents)))
		fmt.Fprintf(w, "queue bytes\t%d\n", m.QueueSizeBytes)
		if m.OldestEvent != nil {
			fmt.Fprintf(w, "oldest event\t%s\n", m.OldestEvent.Format("2006-01-02 15:04:05"))
		}
		if m.LastSyncAttempt != nil {
			fmt.Fprintf(w, "last attempt\t%s\n", m.LastSyncAttempt.Format("2006-01-02 15:04:05"))
		}
		if m.LastSuccessfulSync != nil {
			fmt.Fprintf(w, "last success\t%s\n", m.LastSuccessfulSync.Format("2006-01-02 15:04:05"))
		}
		if m.AvgSyncLatency > 0 {
			fmt.Fprintf(w, "avg latency\t%s\n", m.AvgSyncLatency)
		}
		for strategy, n := range m.Conflicts {
			fmt.Fprintf(w, "conflicts (%s)\t%d\n", strategy, n)
		}
		return w.Flush()
	},
}
