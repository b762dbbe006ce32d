package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relayq/internal/config"
	"github.com/alfredjeanlab/relayq/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show configuration and manage collector profiles",
	GroupID: "system",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if jsonOutput {
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "db path\t%s\n", cfg.DBPath)
		fmt.Fprintf(w, "collector url\t%s\n", cfg.CollectorURL)
		fmt.Fprintf(w, "auth token\t%s\n", maskToken(cfg.AuthToken))
		fmt.Fprintf(w, "nats url\t%s\n", cfg.NATSURL)
		fmt.Fprintf(w, "probe interval\t%s\n", cfg.ProbeInterval)
		fmt.Fprintf(w, "max queue size\t%d\n", cfg.MaxQueueSize)
		fmt.Fprintf(w, "max event age\t%s\n", cfg.MaxEventAge)
		fmt.Fprintf(w, "max retries\t%d\n", cfg.MaxRetries)
		fmt.Fprintf(w, "sync interval\t%s\n", cfg.SyncInterval)
		fmt.Fprintf(w, "batch size\t%d\n", cfg.BatchSize)
		fmt.Fprintf(w, "compression\t%t\n", cfg.Compression)
		if cfg.ArchiveS3Bucket != "" {
			fmt.Fprintf(w, "archive bucket\t%s\n", cfg.ArchiveS3Bucket)
			fmt.Fprintf(w, "archive interval\t%s\n", cfg.ArchiveInterval)
		}
		return w.Flush()
	},
}

var configProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage named collector profiles",
}

var configProfileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}

		names := make([]string, 0, len(profiles.Profiles))
		for name := range profiles.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p := profiles.Profiles[name]
			marker := " "
			if name == profiles.Active {
				marker = ui.RenderAccent("*")
			}
			fmt.Printf("%s %s\t%s\n", marker, name, ui.RenderMuted(p.CollectorURL))
		}
		return nil
	},
}

var configProfileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats-url")

		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		profiles.Profiles[args[0]] = config.Profile{
			CollectorURL: url,
			Token:        token,
			NATSURL:      natsURL,
		}
		if profiles.Active == "" {
			profiles.Active = args[0]
		}
		return config.SaveProfiles(profiles)
	},
}

var configProfileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Activate a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if _, ok := profiles.Profiles[args[0]]; !ok {
			return fmt.Errorf("unknown profile %q", args[0])
		}
		profiles.Active = args[0]
		return config.SaveProfiles(profiles)
	},
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}

func init() {
	configProfileAddCmd.Flags().String("url", "", "collector base URL")
	configProfileAddCmd.Flags().String("token", "", "bearer token")
	configProfileAddCmd.Flags().String("nats-url", "", "NATS URL for lifecycle events")
	_ = configProfileAddCmd.MarkFlagRequired("url")

	configProfileCmd.AddCommand(configProfileListCmd)
	configProfileCmd.AddCommand(configProfileAddCmd)
	configProfileCmd.AddCommand(configProfileUseCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProfileCmd)
}
