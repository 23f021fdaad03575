package pipeline

import (
	"fmt"
	"strings"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/dag/transform"
	"github.com/matzehuels/flowlayout/pkg/layout"
)

// LargeGraphNodes is the node count above which the balanced profile turns
// crossing minimization off, unless it was requested explicitly.
const LargeGraphNodes = 500

// adapt fixes settings that cannot produce a sensible layout for this input.
// Every change is returned as a recommendation.
func adapt(cfg layout.Config, opts layout.Options, nodeCount int) (layout.Config, []Recommendation) {
	var recs []Recommendation

	if cfg.MaxLayerWidth < 1 {
		recs = append(recs, Recommendation{
			Code:     RecClampMaxLayerWidth,
			Severity: dag.SeverityWarning,
			Message:  fmt.Sprintf("max_layer_width %d is below 1; using 1", cfg.MaxLayerWidth),
		})
		cfg.MaxLayerWidth = 1
	}

	if tallest := cfg.TallestNode(); cfg.NodeSpacing < tallest {
		recs = append(recs, Recommendation{
			Code:     RecRaiseNodeSpacing,
			Severity: dag.SeverityWarning,
			Message: fmt.Sprintf("node_spacing %g is smaller than the tallest node (%g) and would overlap nodes; using %g",
				cfg.NodeSpacing, tallest, tallest),
		})
		cfg.NodeSpacing = tallest
	}

	if nodeCount > LargeGraphNodes && cfg.Profile == layout.ProfileBalanced &&
		cfg.MinimizeEdgeCrossings && opts.MinimizeEdgeCrossings == nil {
		recs = append(recs, Recommendation{
			Code:     RecLargeGraph,
			Severity: dag.SeverityInfo,
			Message: fmt.Sprintf("crossing minimization disabled for %d nodes (over %d); set minimize_edge_crossings to force it",
				nodeCount, LargeGraphNodes),
		})
		cfg.MinimizeEdgeCrossings = false
	}

	return cfg, recs
}

// recommend derives advice from the finished run.
func recommend(cfg layout.Config, issues []dag.Issue, report *transform.CycleReport, br *transform.BreakResult, v *layout.ValidationResult) []Recommendation {
	var recs []Recommendation

	if len(issues) > 0 {
		recs = append(recs, issueSummary(issues))
	}

	if n := len(report.Cycles); n > 0 {
		switch cfg.CycleHandling {
		case layout.CycleBreak:
			recs = append(recs, Recommendation{
				Code:     RecCyclesBroken,
				Severity: dag.SeverityInfo,
				Message: fmt.Sprintf("broke %d cycles by drawing %d transitions as back edges (cycle quality %.2f)",
					br.CyclesSolved, br.FeedbackEdges.Len(), br.Impact.Quality),
			})
		case layout.CycleHighlight:
			recs = append(recs, Recommendation{
				Code:     RecCyclesHighlighted,
				Severity: dag.SeverityWarning,
				Message: fmt.Sprintf("%d cycles highlighted; %d back edges were left out of layering without scoring",
					n, br.FeedbackEdges.Len()),
			})
		}
		if report.Complexity == transform.ComplexityCritical {
			recs = append(recs, Recommendation{
				Code:     RecCriticalCycles,
				Severity: dag.SeverityWarning,
				Message:  fmt.Sprintf("%d interlocking cycles; consider splitting loops into separate workflows", n),
			})
		}
	}

	for _, s := range v.Suggestions {
		recs = append(recs, Recommendation{
			Code:     RecValidationSuggested,
			Severity: s.Severity,
			Message:  s.Message,
			Finding:  s.Code,
		})
	}
	return recs
}

// issueSummary folds issues into one recommendation with the highest
// severity among them.
func issueSummary(issues []dag.Issue) Recommendation {
	counts := map[dag.IssueKind]int{}
	severity := dag.SeverityInfo
	for _, is := range issues {
		counts[is.Kind]++
		switch {
		case is.Severity == dag.SeverityError:
			severity = dag.SeverityError
		case is.Severity == dag.SeverityWarning && severity == dag.SeverityInfo:
			severity = dag.SeverityWarning
		}
	}

	var parts []string
	for _, kind := range []dag.IssueKind{dag.IssueMissingTarget, dag.IssueUnreachable, dag.IssueOrphan} {
		if c := counts[kind]; c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, strings.ReplaceAll(string(kind), "_", " ")))
		}
	}
	return Recommendation{
		Code:     RecStructuralIssues,
		Severity: severity,
		Message:  "fix the workflow definition: " + strings.Join(parts, ", "),
	}
}
