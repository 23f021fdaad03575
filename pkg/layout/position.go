package layout

import (
	"cmp"
	"slices"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/dag/transform"
)

// MaxCrossingPasses bounds the median reordering sweeps.
const MaxCrossingPasses = 5

// Position is the top-left corner of a node box in layout space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positioned is a layer assignment turned into coordinates.
type Positioned struct {
	Positions   map[string]Position `json:"positions"`
	Layers      [][]string          `json:"layers"`
	BoundingBox BoundingBox         `json:"bounding_box"`
	Metrics     PositionMetrics     `json:"metrics"`
	boxes       []Box
}

// PositionMetrics are diagnostics; no stage depends on them.
type PositionMetrics struct {
	// EstimatedCrossings counts crossings between adjacent layers only.
	EstimatedCrossings int `json:"estimated_crossings"`
	// SpaceUtilization is node area divided by bounding box area.
	SpaceUtilization float64 `json:"space_utilization"`
	// Passes is the number of reordering sweeps that ran.
	Passes int `json:"passes"`
}

// Boxes returns the node boxes in layer order.
func (p *Positioned) Boxes() []Box { return slices.Clone(p.boxes) }

// PositionNodes converts a layer assignment into coordinates.
//
// Layer i is placed at X = Base.X + i×LayerSpacing, so consecutive layers are
// exactly LayerSpacing apart. Within a layer the node at index j is placed at
// Y = Base.Y + j×NodeSpacing. With [AlignCenter] each layer is shifted down by
// half the difference between the tallest layer's span and its own.
//
// # Crossing Reduction
//
// With MinimizeEdgeCrossings set, up to [MaxCrossingPasses] sweeps reorder
// every layer of more than two nodes by the median Y of each node's
// neighbors in the two adjacent layers. Nodes without such neighbors keep
// their current Y as key, and the sort is stable. A sweep that changes no
// layer ends the reduction early. Only edges of g that are not in feedback
// count as neighbors.
//
// The input assignment is not modified.
func PositionNodes(a *transform.Assignment, g *dag.Graph, feedback *dag.EdgeSet, cfg Config) *Positioned {
	residual := g.Without(feedback)
	layers := make([][]string, len(a.Layers))
	for i, l := range a.Layers {
		layers[i] = slices.Clone(l)
	}

	maxSpan := 0.0
	for _, l := range layers {
		maxSpan = max(maxSpan, span(len(l), cfg.NodeSpacing))
	}
	offsets := make([]float64, len(layers))
	if cfg.Alignment == AlignCenter {
		for i, l := range layers {
			offsets[i] = (maxSpan - span(len(l), cfg.NodeSpacing)) / 2
		}
	}

	pos := make(map[string]Position, g.NodeCount())
	place := func(i int) {
		x := cfg.Base.X + float64(i)*cfg.LayerSpacing
		for j, id := range layers[i] {
			pos[id] = Position{X: x, Y: cfg.Base.Y + offsets[i] + float64(j)*cfg.NodeSpacing}
		}
	}
	for i := range layers {
		place(i)
	}

	passes := 0
	if cfg.MinimizeEdgeCrossings {
		passes = reduceCrossings(residual, layers, pos, place)
	}

	p := &Positioned{
		Positions: pos,
		Layers:    layers,
	}
	p.boxes = nodeBoxes(g, layers, pos, cfg)
	p.BoundingBox = boundingBox(p.boxes)
	p.Metrics = PositionMetrics{
		EstimatedCrossings: dag.CountCrossings(residual, layers),
		SpaceUtilization:   utilization(p.boxes, p.BoundingBox),
		Passes:             passes,
	}
	return p
}

// Placeholder lays every node out on a single row, one LayerSpacing apart,
// in layer order. It is used when only the dependency checks of [Validate]
// are wanted.
func Placeholder(a *transform.Assignment, g *dag.Graph, cfg Config) *Positioned {
	pos := make(map[string]Position, g.NodeCount())
	var layers [][]string
	i := 0
	for _, l := range a.Layers {
		layers = append(layers, slices.Clone(l))
		for _, id := range l {
			pos[id] = Position{X: cfg.Base.X + float64(i)*cfg.LayerSpacing, Y: cfg.Base.Y}
			i++
		}
	}
	p := &Positioned{Positions: pos, Layers: layers}
	p.boxes = nodeBoxes(g, layers, pos, cfg)
	p.BoundingBox = boundingBox(p.boxes)
	p.Metrics.SpaceUtilization = utilization(p.boxes, p.BoundingBox)
	return p
}

func span(n int, spacing float64) float64 {
	if n == 0 {
		return 0
	}
	return float64(n-1) * spacing
}

func reduceCrossings(g *dag.Graph, layers [][]string, pos map[string]Position, place func(int)) int {
	layerOf := make(map[string]int)
	for i, l := range layers {
		for _, id := range l {
			layerOf[id] = i
		}
	}

	passes := 0
	for passes < MaxCrossingPasses {
		passes++
		changed := false
		for i, l := range layers {
			if len(l) <= 2 {
				continue
			}
			keys := make(map[string]float64, len(l))
			for _, id := range l {
				keys[id] = medianNeighborY(g, id, i, layerOf, pos)
			}
			next := slices.Clone(l)
			slices.SortStableFunc(next, func(a, b string) int { return cmp.Compare(keys[a], keys[b]) })
			if slices.Equal(next, l) {
				continue
			}
			layers[i] = next
			place(i)
			changed = true
		}
		if !changed {
			break
		}
	}
	return passes
}

func medianNeighborY(g *dag.Graph, id string, layer int, layerOf map[string]int, pos map[string]Position) float64 {
	var ys []float64
	collect := func(ids []string) {
		for _, n := range ids {
			if l := layerOf[n]; l == layer-1 || l == layer+1 {
				ys = append(ys, pos[n].Y)
			}
		}
	}
	collect(g.Parents(id))
	collect(g.Children(id))
	if len(ys) == 0 {
		return pos[id].Y
	}
	slices.Sort(ys)
	mid := len(ys) / 2
	if len(ys)%2 == 1 {
		return ys[mid]
	}
	return (ys[mid-1] + ys[mid]) / 2
}

func nodeBoxes(g *dag.Graph, layers [][]string, pos map[string]Position, cfg Config) []Box {
	var boxes []Box
	for _, l := range layers {
		for _, id := range l {
			n, _ := g.Node(id)
			w, h := cfg.NodeSize(n.Annotated)
			p := pos[id]
			boxes = append(boxes, Box{NodeID: id, Left: p.X, Right: p.X + w, Top: p.Y, Bottom: p.Y + h})
		}
	}
	return boxes
}

func utilization(boxes []Box, bb BoundingBox) float64 {
	area := bb.Area()
	if area <= 0 {
		return 0
	}
	used := 0.0
	for _, b := range boxes {
		used += b.Area()
	}
	return min(1, used/area)
}
