package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+styleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+styleDim.Render(iconArrow)+" "+styleValue.Render(path))
}

func printKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+styleValue.Render(value))
}

// printStats prints graph statistics on a single line.
func printStats(w io.Writer, res *pipeline.Result, cached bool) {
	parts := []string{
		fmt.Sprintf("%d nodes", res.Metadata.NodeCount),
		fmt.Sprintf("%d edges", res.Metadata.EdgeCount),
		fmt.Sprintf("%d layers", res.Diagnostics.LayerCount),
	}

	status, statusStyle := iconFresh, styleComputed
	if cached {
		status, statusStyle = iconCached, styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += styleDim.Render(" · ")
		}
		line += styleDim.Render(part)
	}
	fmt.Fprintln(w, line+styleDim.Render(" · ")+statusStyle.Render(status))
}

func printNextStep(w io.Writer, description, cmd string) {
	fmt.Fprintln(w, styleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// =============================================================================
// Diagnostics
// =============================================================================

// diagnosticsTable renders the run diagnostics as a two-column table.
func diagnosticsTable(res *pipeline.Result) string {
	d := res.Diagnostics
	rows := [][]string{
		{"cycles", fmt.Sprintf("%d detected, %d broken (%s)", d.CyclesDetected, d.CyclesBroken, d.CycleComplexity)},
		{"feedback edges", strconv.Itoa(d.FeedbackEdges)},
		{"layers", fmt.Sprintf("%d (balance %.2f, %d relocated)", d.LayerCount, d.LayerBalance, d.Relocated)},
		{"crossings", fmt.Sprintf("%d after %d passes", d.EstimatedCrossings, d.CrossingPasses)},
		{"space used", fmt.Sprintf("%.0f%%", d.SpaceUtilization*100)},
		{"score", fmt.Sprintf("%.2f", d.LayoutScore)},
	}
	for _, s := range d.Stages {
		rows = append(rows, []string{"  " + s.Stage, s.Duration.String()})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Diagnostic", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			switch {
			case row == -1:
				return style.Foreground(colorCyan).Bold(true)
			case col == 0:
				return style.Foreground(colorGray)
			}
			return style
		})
	return t.String()
}

func printDiagnostics(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w, diagnosticsTable(res))
}

// printRecommendations lists recommendations, most severe first.
func printRecommendations(w io.Writer, recs []pipeline.Recommendation) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w, styleTitle.Render("Recommendations"))
	for _, sev := range []dag.Severity{dag.SeverityError, dag.SeverityWarning, dag.SeverityInfo} {
		for _, r := range recs {
			if r.Severity != sev {
				continue
			}
			switch sev {
			case dag.SeverityError:
				fmt.Fprintln(w, "  "+styleIconError.Render(iconError)+" "+styleError.Render(r.Message))
			case dag.SeverityWarning:
				fmt.Fprintln(w, "  "+styleIconWarning.Render(iconWarning)+" "+styleWarning.Render(r.Message))
			default:
				fmt.Fprintln(w, "  "+styleIconInfo.Render(iconInfo)+" "+r.Message)
			}
		}
	}
}

// printValidation summarizes a validation result.
func printValidation(w io.Writer, v *layout.ValidationResult) {
	status := styleIconSuccess.Render("valid")
	if !v.Valid {
		status = styleIconError.Render("invalid")
	}
	printKeyValue(w, "status", status)
	printKeyValue(w, "score", fmt.Sprintf("%.2f", v.Score))
	printKeyValue(w, "compliance", fmt.Sprintf("%.0f%%", v.Compliance*100))
	printKeyValue(w, "overlaps", strconv.Itoa(v.Overlaps))
	for _, f := range v.Errors {
		printError(w, "%s", f.Message)
		if len(f.Nodes) > 0 {
			printDetail(w, "nodes: %s", strings.Join(f.Nodes, ", "))
		}
	}
	for _, f := range v.Warnings {
		printWarning(w, "%s", f.Message)
	}
}
