package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Discard every pending event",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("refusing to discard pending events without --force")
		}

		client, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		n := client.Status().Size
		if err := client.ClearQueue(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("discarded %d events\n", n)
		return nil
	},
}

func init() {
	clearCmd.Flags().Bool("force", false, "confirm discarding all pending events")
}
