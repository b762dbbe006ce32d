package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show queue size and connectivity",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		st := client.Status()
		if jsonOutput {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		online := ui.RenderBad("offline")
		if st.IsOnline {
			online = ui.RenderGood("online")
		}
		syncing := "idle"
		if st.IsSyncing {
			syncing = "syncing"
		}
		fmt.Printf("%s %d pending, %s, %s\n", ui.RenderAccent("queue:"), st.Size, online, syncing)
		return nil
	},
}
