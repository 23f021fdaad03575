package layout

// Box is the rectangle a node occupies. Y grows downward, so Top < Bottom.
type Box struct {
	NodeID      string
	Left, Right float64
	Top, Bottom float64
}

// Width returns the horizontal span of the box.
func (b Box) Width() float64 { return b.Right - b.Left }

// Height returns the vertical span of the box.
func (b Box) Height() float64 { return b.Bottom - b.Top }

// Area returns Width × Height.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Overlap returns the area shared by b and o, or 0 if they are disjoint or
// only touch.
func (b Box) Overlap(o Box) float64 {
	w := min(b.Right, o.Right) - max(b.Left, o.Left)
	h := min(b.Bottom, o.Bottom) - max(b.Top, o.Top)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// BoundingBox is the smallest rectangle holding every node box.
type BoundingBox struct {
	MinX   float64 `json:"min_x"`
	MinY   float64 `json:"min_y"`
	MaxX   float64 `json:"max_x"`
	MaxY   float64 `json:"max_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width × Height.
func (b BoundingBox) Area() float64 { return b.Width * b.Height }

func boundingBox(boxes []Box) BoundingBox {
	if len(boxes) == 0 {
		return BoundingBox{}
	}
	bb := BoundingBox{
		MinX: boxes[0].Left, MinY: boxes[0].Top,
		MaxX: boxes[0].Right, MaxY: boxes[0].Bottom,
	}
	for _, b := range boxes[1:] {
		bb.MinX = min(bb.MinX, b.Left)
		bb.MinY = min(bb.MinY, b.Top)
		bb.MaxX = max(bb.MaxX, b.Right)
		bb.MaxY = max(bb.MaxY, b.Bottom)
	}
	bb.Width = bb.MaxX - bb.MinX
	bb.Height = bb.MaxY - bb.MinY
	return bb
}
