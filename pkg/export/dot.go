package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/flowlayout/pkg/pipeline"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// pointsPerInch converts layout units to Graphviz inches.
const pointsPerInch = 72.0

var typeFill = map[workflow.NodeType]string{
	workflow.TypeStart:  "#e3f2fd",
	workflow.TypeAction: "white",
	workflow.TypeWait:   "#fff8e1",
	workflow.TypeEnd:    "#e8f5e9",
}

// ToDOT converts a layout result to Graphviz DOT. Every node is pinned at
// its computed position with its computed size, so the output must be laid
// out with neato (as [RenderSVG] does) to keep the positions.
func ToDOT(res *pipeline.Result, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=true;\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fixedsize=true, fontsize=14, fillcolor=white];\n")
	buf.WriteString("  edge [arrowsize=0.8];\n")
	buf.WriteString("\n")

	bottom := res.BoundingBox.MaxY
	for _, n := range res.Nodes {
		p, ok := res.Positions[n.ID]
		if !ok {
			continue
		}
		cx := (p.X + n.Width/2) / pointsPerInch
		cy := (bottom - p.Y - n.Height/2) / pointsPerInch
		attrs := []string{
			fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed)),
			fmt.Sprintf("pos=\"%.3f,%.3f!\"", cx, cy),
			fmt.Sprintf("width=%.3f", n.Width/pointsPerInch),
			fmt.Sprintf("height=%.3f", n.Height/pointsPerInch),
		}
		if fill, ok := typeFill[n.Type]; ok && fill != "white" {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
		}
		if n.Annotated {
			attrs = append(attrs, "peripheries=2")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range res.Edges {
		var attrs []string
		if opts.Conditions && e.Condition != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", e.Condition))
		}
		if e.Feedback {
			attrs = append(attrs, "style=dashed", "color=\"#c0392b\"")
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n pipeline.Node, detailed bool) string {
	if !detailed {
		return n.ID
	}
	typ := string(n.Type)
	if typ == "" {
		typ = "unclassified"
	}
	return fmt.Sprintf("%s\n%s · layer %d", n.ID, typ, n.Layer)
}
