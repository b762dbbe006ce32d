package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq"
)

var flushCmd = &cobra.Command{
	Use:     "flush",
	Short:   "Force an immediate sync cycle",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		before := client.Status().Size
		if err := client.ForceSync(cmd.Context()); err != nil {
			if errors.Is(err, relayq.ErrOffline) {
				return fmt.Errorf("collector unreachable; %d events remain queued", before)
			}
			return err
		}
		after := client.Status().Size
		fmt.Printf("synced %d events, %d pending\n", before-after, after)
		return nil
	},
}
