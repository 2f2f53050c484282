package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/render"
	"github.com/changelog-weaver/weaver/internal/tracing"
	"github.com/changelog-weaver/weaver/internal/work"
	"github.com/changelog-weaver/weaver/internal/workitem"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the release changelog",
	Long: `Generate the release changelog for the configured project.

Work items are fetched from the platform detected from project.url, missing
parents are resolved, items without a reachable parent are collected under
"Other", and the groups are rendered to <output.folder>/<name>-v<version>.md.

Examples:
  weaver generate
  weaver generate --output dist --no-summary
  weaver generate --dry-run > CHANGELOG.md`,
	RunE: runGenerate,
}

var (
	generateOutput    string // Overrides output.folder
	generateNoCommits bool   // Disables the Commit group
	generateNoSummary bool   // Disables item and changelog summaries
	generateDryRun    bool   // Print Markdown instead of writing it
)

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output folder (overrides output.folder)")
	generateCmd.Flags().BoolVar(&generateNoCommits, "no-commits", false, "do not append the Commit group")
	generateCmd.Flags().BoolVar(&generateNoSummary, "no-summary", false, "skip item and changelog summaries")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "print the changelog to stdout instead of writing it")
	rootCmd.AddCommand(generateCmd)
}

// applyGenerateFlags lets command-line flags override the loaded config.
func applyGenerateFlags(cfg *config.Config) {
	if generateOutput != "" {
		cfg.Output.Folder = generateOutput
	}
	if generateNoCommits {
		cfg.Changelog.IncludeCommits = false
	}
	if generateNoSummary {
		cfg.Model.ItemSummary = false
		cfg.Model.ChangelogSummary = false
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	applyGenerateFlags(cfg)

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx := cmd.Context()
	shutdown, err := tracing.Setup(cfg.Tracing.Enabled, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	tmpl, err := render.LoadTemplate(cfg.Changelog.Template)
	if err != nil {
		return err
	}

	w, err := work.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := generate(ctx, w, cfg, tmpl)
	writeMetrics(w, cfg, logger)
	if err != nil {
		logger.Error("changelog generation failed", "error", err.Error())
		return err
	}

	if generateDryRun {
		_, err := fmt.Fprint(cmd.OutOrStdout(), res.markdown)
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	p.Println(p.Success("✓"), "Changelog written to", p.Heading(res.path))
	p.Println(p.Muted(fmt.Sprintf("  %d groups, %d items in %s", res.groups, res.items, time.Since(start).Round(time.Millisecond))))
	return nil
}

type generateResult struct {
	markdown string
	path     string
	groups   int
	items    int
}

// generate runs one aggregation and renders it. The platform client is
// closed even when a step fails.
func generate(ctx context.Context, w *work.Work, cfg *config.Config, tmpl string) (generateResult, error) {
	var res generateResult
	err := w.Run(ctx, func(ctx context.Context, w *work.Work) error {
		groups, err := w.GenerateOrderedGroups(ctx)
		if err != nil {
			return err
		}
		summary, err := w.SummarizeChangelog(ctx, groups)
		if err != nil {
			return err
		}

		md, err := render.Markdown(tmpl, render.NewData(cfg.Project.Name, cfg.Project.Version, summary, groups))
		if err != nil {
			return err
		}
		res.markdown = md
		res.groups = len(groups)
		res.items = countItems(groups)

		if generateDryRun {
			return nil
		}
		res.path = cfg.ChangelogPath()
		return render.WriteFile(res.path, md)
	})
	return res, err
}

func countItems(groups []*workitem.Group) int {
	n := 0
	for _, g := range groups {
		for _, item := range g.Items {
			item.Walk(func(node *workitem.Node) bool {
				if node.ID != workitem.OrphanBucketID {
					n++
				}
				return true
			})
		}
	}
	return n
}

func writeMetrics(w *work.Work, cfg *config.Config, logger *logging.Logger) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := w.Metrics().WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err.Error())
	}
}
