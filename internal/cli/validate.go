package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/errors"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/pipeline"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var (
		flags   layoutFlags
		noCache bool
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "validate [workflow.json|workflow.toml]",
		Short: "Check a workflow without computing positions",
		Long: `Check a workflow without computing positions.

Runs graph construction, cycle handling and layering, then checks that every
transition points forward. Structural problems (missing targets, unreachable
and orphan nodes) are listed. The command fails if the layering breaks a
dependency, or with --strict if any structural error is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(flags.options(cmd.Flags()))
			if err != nil {
				return err
			}
			return c.runValidate(cmd.Context(), args[0], opts, noCache, strict)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on structural errors such as missing targets")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, input string, opts layout.Options, noCache, strict bool) error {
	wf, err := workflow.ReadFile(input)
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", input, err)
	}
	if err := workflow.Validate(wf.Nodes); err != nil {
		return err
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, info, err := runner.Validate(ctx, pipeline.Request{Nodes: wf.Nodes, Options: opts})
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	out := c.Out
	printInfo(out, "%s", displayName(wf, input))
	printStats(out, res, info.CacheHit)
	printValidation(out, res.Validation)
	for _, is := range res.Issues {
		switch is.Severity {
		case dag.SeverityError:
			printError(out, "%s", is.Message)
		case dag.SeverityWarning:
			printWarning(out, "%s", is.Message)
		default:
			printDetail(out, "%s", is.Message)
		}
	}

	if !res.Validation.Valid {
		return errors.New(errors.ErrCodeInvalidInput, "layering violates %d dependencies", len(res.Validation.Errors))
	}
	if strict {
		for _, is := range res.Issues {
			if is.Severity == dag.SeverityError {
				return errors.New(errors.ErrCodeInvalidInput, "workflow has structural errors")
			}
		}
	}
	printSuccess(out, "Workflow is valid")
	return nil
}
