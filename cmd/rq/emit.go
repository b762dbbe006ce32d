package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq"
)

var emitCmd = &cobra.Command{
	Use:     "emit",
	Short:   "Enqueue an event",
	GroupID: "queue",
	Long: `Enqueues one event. The payload is read from --payload or, when the
flag is omitted, from stdin. The event id is printed on success.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetString("priority")
		payloadFlag, _ := cmd.Flags().GetString("payload")

		payload := []byte(payloadFlag)
		if payloadFlag == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read payload from stdin: %w", err)
			}
			payload = data
		}

		client, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		id, err := client.Enqueue(relayq.EventType(typ), json.RawMessage(payload), relayq.Priority(priority))
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	emitCmd.Flags().String("type", "system", "event type: detection|performance|error|interaction|system")
	emitCmd.Flags().String("priority", "medium", "priority: critical|high|medium|low")
	emitCmd.Flags().String("payload", "", "JSON payload (default: read from stdin)")
}
