package layout

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/dag/transform"
)

// Score weights.
const (
	ComplianceWeight = 0.7
	VisualWeight     = 0.3

	// PoorBalance is the balance score below which a suggestion is made.
	PoorBalance = 0.5
)

// FindingCode identifies the kind of a validation finding.
type FindingCode string

const (
	FindingDependencyViolation FindingCode = "dependency_violation"
	FindingOverlap             FindingCode = "overlap"
	FindingIncreaseSpacing     FindingCode = "increase_spacing"
	FindingEnableCrossings     FindingCode = "enable_crossing_minimization"
	FindingImproveBalance      FindingCode = "improve_balance"
)

// Finding is one structured validation message. Callers render or log it;
// Message is a plain default wording.
type Finding struct {
	Code     FindingCode  `json:"code"`
	Severity dag.Severity `json:"severity"`
	Message  string       `json:"message"`
	Nodes    []string     `json:"nodes,omitempty"`
}

// ValidationResult grades a finished layout.
type ValidationResult struct {
	// Valid is true when there are no errors.
	Valid bool `json:"valid"`
	// Score is 0.7×Compliance + 0.3×visual quality, in [0,1].
	Score float64 `json:"score"`
	// Compliance is the fraction of non-feedback edges that point forward.
	Compliance float64 `json:"compliance"`
	// Overlaps counts node pairs overlapping beyond the tolerance.
	Overlaps int `json:"overlaps"`

	Errors      []Finding `json:"errors"`
	Warnings    []Finding `json:"warnings"`
	Suggestions []Finding `json:"suggestions"`
}

// Validate checks a layout.
//
// Every edge of g not in feedback must go from a lower to a higher layer;
// each that does not is an error. Two node boxes whose shared area exceeds
// OverlapTolerance times the smaller box are a warning. Suggestions point at
// configuration that would improve the result: more spacing when boxes
// overlap, crossing minimization when crossings remain with it disabled,
// and balancing or narrower layers when the balance score is poor.
//
// The visual quality is max(0, 1 - overlaps/nodes).
func Validate(g *dag.Graph, feedback *dag.EdgeSet, a *transform.Assignment, p *Positioned, cfg Config) *ValidationResult {
	res := &ValidationResult{
		Errors:      []Finding{},
		Warnings:    []Finding{},
		Suggestions: []Finding{},
	}

	res.Compliance = compliance(g, feedback, a, res)
	res.Overlaps = overlaps(p.boxes, cfg.OverlapTolerance, res)

	if res.Overlaps > 0 {
		res.Suggestions = append(res.Suggestions, Finding{
			Code:     FindingIncreaseSpacing,
			Severity: dag.SeverityInfo,
			Message: fmt.Sprintf("increase node_spacing (now %g) or layer_spacing (now %g) to separate overlapping nodes",
				cfg.NodeSpacing, cfg.LayerSpacing),
		})
	}
	if p.Metrics.EstimatedCrossings > 0 && !cfg.MinimizeEdgeCrossings {
		res.Suggestions = append(res.Suggestions, Finding{
			Code:     FindingEnableCrossings,
			Severity: dag.SeverityInfo,
			Message:  fmt.Sprintf("enable minimize_edge_crossings to reduce %d estimated crossings", p.Metrics.EstimatedCrossings),
		})
	}
	if a.Metrics.TotalLayers > 0 && a.Metrics.Balance < PoorBalance {
		msg := fmt.Sprintf("enable optimize_balance to even out layer sizes (balance %.2f)", a.Metrics.Balance)
		if cfg.OptimizeBalance {
			msg = fmt.Sprintf("lower max_layer_width (now %d) to even out layer sizes (balance %.2f)", cfg.MaxLayerWidth, a.Metrics.Balance)
		}
		res.Suggestions = append(res.Suggestions, Finding{
			Code:     FindingImproveBalance,
			Severity: dag.SeverityInfo,
			Message:  msg,
		})
	}

	visual := 1.0
	if n := g.NodeCount(); n > 0 {
		visual = max(0, 1-float64(res.Overlaps)/float64(n))
	}
	res.Score = ComplianceWeight*res.Compliance + VisualWeight*visual
	res.Valid = len(res.Errors) == 0
	return res
}

func compliance(g *dag.Graph, feedback *dag.EdgeSet, a *transform.Assignment, res *ValidationResult) float64 {
	seen := make(map[dag.EdgeID]bool)
	total, ok := 0, 0
	for _, e := range g.Edges() {
		id := e.ID()
		if feedback.Has(id) || seen[id] {
			continue
		}
		seen[id] = true
		total++

		from, okFrom := a.NodeLayer[e.From]
		to, okTo := a.NodeLayer[e.To]
		if okFrom && okTo && from < to {
			ok++
			continue
		}
		res.Errors = append(res.Errors, Finding{
			Code:     FindingDependencyViolation,
			Severity: dag.SeverityError,
			Message:  fmt.Sprintf("edge %s does not point forward (layer %d to %d)", id, from, to),
			Nodes:    []string{e.From, e.To},
		})
	}
	if total == 0 {
		return 1
	}
	return float64(ok) / float64(total)
}

// overlaps sweeps boxes by left edge and records pairs sharing more than
// tolerance of the smaller box.
func overlaps(boxes []Box, tolerance float64, res *ValidationResult) int {
	sorted := slices.Clone(boxes)
	slices.SortStableFunc(sorted, func(a, b Box) int { return cmp.Compare(a.Left, b.Left) })

	count := 0
	for i, a := range sorted {
		for _, b := range sorted[i+1:] {
			if b.Left >= a.Right {
				break
			}
			shared := a.Overlap(b)
			if shared == 0 {
				continue
			}
			smaller := min(a.Area(), b.Area())
			if smaller > 0 && shared/smaller <= tolerance {
				continue
			}
			count++
			res.Warnings = append(res.Warnings, Finding{
				Code:     FindingOverlap,
				Severity: dag.SeverityWarning,
				Message:  fmt.Sprintf("nodes %q and %q overlap by %.0f%%", a.NodeID, b.NodeID, 100*shared/max(smaller, 1)),
				Nodes:    []string{a.NodeID, b.NodeID},
			})
		}
	}
	return count
}
