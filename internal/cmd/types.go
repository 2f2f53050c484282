package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/work"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the work item types of the configured platform",
	RunE:  runTypes,
}

var (
	typesJSON bool // Output as JSON
)

func init() {
	typesCmd.Flags().BoolVar(&typesJSON, "json", false, "Output item types as JSON")
	rootCmd.AddCommand(typesCmd)
}

func runTypes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// Listing types never needs the model.
	cfg.Model.ItemSummary = false
	cfg.Model.ChangelogSummary = false

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	w, err := work.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	var types []workitem.Type
	err = w.Run(cmd.Context(), func(ctx context.Context, w *work.Work) error {
		types = w.ItemTypes()
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if typesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(types)
	}

	p := newPrinter(out)
	if len(types) == 0 {
		p.Println(p.Muted("No item types reported by the platform"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, p.Heading("TYPE")+"\t"+p.Heading("COLOR")+"\t"+p.Heading("ICON"))
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Color, p.Muted(t.Icon))
	}
	return tw.Flush()
}
