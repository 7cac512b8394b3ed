package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var skipDocumentation bool

// panelPublisher is the part of the controller the panels command drives.
type panelPublisher interface {
	PublishPanels(ctx context.Context) (int, int, error)
	PublishDocumentation(ctx context.Context) error
}

var panelsCmd = &cobra.Command{
	Use:   "panels",
	Short: "Publish the entry panels and documentation links, then exit",
	Long: "Posts the \"Iniciar Consulta\" and \"Iniciar Sugerencia\" buttons into their topics of the " +
		"source group and, when TEMA_DOCUMENTACION is set, the documentation links.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadRuntime("cmd.panels")
		if err != nil {
			return err
		}

		bot, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer bot.Close()

		publishDocs := !skipDocumentation && cfg.Groups.DocumentationTopic != 0
		return runPanels(cmd.Context(), cmd.OutOrStdout(), bot.controller, publishDocs)
	},
}

func runPanels(ctx context.Context, w io.Writer, publisher panelPublisher, publishDocs bool) error {
	sent, total, err := publisher.PublishPanels(ctx)
	fmt.Fprintf(w, "panels published: %d/%d\n", sent, total)
	if err != nil {
		return err
	}

	if !publishDocs {
		return nil
	}
	if err := publisher.PublishDocumentation(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "documentation published")
	return nil
}

func init() {
	panelsCmd.Flags().BoolVar(&skipDocumentation, "skip-docs", false, "only publish the entry panels")
	rootCmd.AddCommand(panelsCmd)
}
