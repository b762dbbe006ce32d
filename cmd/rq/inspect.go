package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Short:   "List persisted events for diagnostics",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetString("priority")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		recs, err := client.Inspect(cmd.Context(), relayq.InspectFilter{
			Type:     relayq.EventType(typ),
			Priority: relayq.Priority(priority),
			Limit:    limit,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			data, err := json.MarshalIndent(recs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tRETRIES\tTIMESTAMP\tEXPIRES")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				r.ID,
				r.Type,
				r.Priority,
				r.RetryCount,
				r.Timestamp.Format("2006-01-02 15:04:05"),
				r.ExpiresAt.Format("2006-01-02 15:04:05"),
			)
		}
		w.Flush()
		fmt.Printf("\n%d events\n", len(recs))
		return nil
	},
}

func init() {
	inspectCmd.Flags().String("type", "", "filter by event type")
	inspectCmd.Flags().String("priority", "", "filter by priority")
	inspectCmd.Flags().Int("limit", 0, "maximum events to list (0 = all)")
}
