package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlayout/pkg/export"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/pipeline"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

type layoutRun struct {
	input       string
	output      string
	format      string
	noCache     bool
	refresh     bool
	diagnostics bool
	export      export.Options
	opts        layout.Options
}

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		run   layoutRun
		flags layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [workflow.json|workflow.toml]",
		Short: "Compute a layout for a workflow",
		Long: `Compute a layout for a workflow.

The workflow is read from a JSON or TOML file. Nodes are assigned to layers
so that transitions point forward; loops are broken and drawn as back edges.
The result is written as JSON (positions, layers and diagnostics), as a
Graphviz DOT file with pinned positions, or as SVG.

Layout options come from the optimization profile, then the --config file,
then flags. Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(flags.options(cmd.Flags()))
			if err != nil {
				return err
			}
			run.input = args[0]
			run.opts = opts
			return c.runLayout(cmd.Context(), run)
		},
	}

	cmd.Flags().StringVarP(&run.output, "output", "o", "", "output file (default: <input>.layout.<format>)")
	cmd.Flags().StringVarP(&run.format, "format", "f", "", "output format: json, dot, svg (default: from --output, else json)")
	cmd.Flags().BoolVar(&run.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&run.refresh, "refresh", false, "recompute even if a cached layout exists")
	cmd.Flags().BoolVarP(&run.diagnostics, "diagnostics", "d", false, "print the diagnostics table")
	cmd.Flags().BoolVar(&run.export.Detailed, "detailed", false, "show node type and layer in DOT/SVG labels")
	cmd.Flags().BoolVar(&run.export.Conditions, "conditions", false, "label DOT/SVG edges with transition conditions")
	flags.register(cmd)
	_ = cmd.RegisterFlagCompletionFunc("format", fixedCompletion("json", "dot", "svg"))

	return cmd
}

// runLayout reads the workflow, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, run layoutRun) error {
	logger := loggerFromContext(ctx)

	format, outputPath, err := resolveOutput(run.input, run.output, run.format)
	if err != nil {
		return err
	}

	wf, err := workflow.ReadFile(run.input)
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", run.input, err)
	}
	if err := workflow.Validate(wf.Nodes); err != nil {
		return err
	}

	runner, err := c.newRunner(run.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, c.errWriter(), fmt.Sprintf("Laying out %d nodes...", len(wf.Nodes)))
	spinner.Start()

	res, info, err := runner.Layout(ctx, pipeline.Request{Nodes: wf.Nodes, Options: run.opts, Refresh: run.refresh})
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()
	prog.done("laid out "+displayName(wf, run.input), "cached", info.CacheHit)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := export.WriteFile(ctx, outputPath, res, format, run.export); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	out := c.Out
	printSuccess(out, "Layout complete")
	printFile(out, outputPath)
	printStats(out, res, info.CacheHit)
	if run.diagnostics {
		printDiagnostics(out, res)
	}
	printRecommendations(out, res.Recommendations)
	if format == export.FormatJSON {
		fmt.Fprintln(out)
		printNextStep(out, "Render", fmt.Sprintf("%s layout -f svg %s", appName, run.input))
	}
	return nil
}

// resolveOutput picks the output format and path. An explicit format wins,
// then the output extension, then JSON.
func resolveOutput(input, output, format string) (export.Format, string, error) {
	switch {
	case format != "":
		if err := export.ValidateFormat(format); err != nil {
			return "", "", err
		}
	case output != "":
		f, err := export.FormatFromPath(output)
		if err != nil {
			return "", "", err
		}
		format = string(f)
	default:
		format = string(export.FormatJSON)
	}

	if output == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		output = base + ".layout." + format
	}
	return export.Format(format), output, nil
}

func displayName(wf *workflow.Workflow, input string) string {
	if wf.Name != "" {
		return wf.Name
	}
	return filepath.Base(input)
}
