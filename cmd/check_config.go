package cmd

import (
	"fmt"
	"io"
	"strings"

	"comitebot/pkg/action"
	"comitebot/pkg/config"

	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the environment and print the resolved routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(envFile)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "bot: @%s\n", cfg.Telegram.BotUsername)
	fmt.Fprintf(w, "source group: %d\n", cfg.Groups.SourceGroupID)

	routes := cfg.Routes()
	for _, typ := range action.All() {
		dest := routes[typ]
		fmt.Fprintf(w, "%s: entry topic %d -> group %d topic %d\n", typ, cfg.EntryTopic(typ), dest.GroupID, dest.TopicID)
	}
	if cfg.Groups.DocumentationTopic > 0 {
		fmt.Fprintf(w, "documentation topic: %d\n", cfg.Groups.DocumentationTopic)
	}

	admins := "everyone"
	if len(cfg.Telegram.AdminIDs) > 0 {
		admins = strings.Join(cfg.Telegram.AdminIDs, ",")
	}
	fmt.Fprintf(w, "admins: %s\n", admins)
	fmt.Fprintf(w, "session store: %s (ttl %s)\n", cfg.Session.Store, cfg.Session.TTL)
	fmt.Fprintf(w, "forward: timeout %s, attempts %d\n", cfg.Forward.Timeout, cfg.Forward.MaxAttempts)
}
