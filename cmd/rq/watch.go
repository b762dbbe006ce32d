package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq/internal/config"
	"github.com/alfredjeanlab/relayq/internal/events"
	"github.com/alfredjeanlab/relayq/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream queue lifecycle events from the bus",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.NATSURL == "" {
			return fmt.Errorf("no event bus configured; set RELAYQ_NATS_URL")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		logger := cliLogger()
		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("event bus disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("event bus reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				fmt.Println(formatBusMessage(msg, time.Now().UTC()))
			}
		}
	},
}

func formatBusMessage(msg events.Message, now time.Time) string {
	if jsonOutput {
		line, err := json.Marshal(struct {
			Topic string          `json:"topic"`
			Event json.RawMessage `json:"event"`
		}{Topic: msg.Topic, Event: msg.Data})
		if err != nil {
			return ""
		}
		return string(line)
	}
	return fmt.Sprintf("%s %s %s",
		ui.RenderMuted(now.Format(time.RFC3339)),
		ui.RenderAccent(msg.Topic),
		msg.Data)
}

func init() {
	watchCmd.Flags().String("topic", "relayq.>", "bus topic to subscribe to (NATS wildcards allowed)")
}
