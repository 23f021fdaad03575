package layout

import (
	"fmt"
	"math"

	"github.com/matzehuels/flowlayout/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultLayerSpacing        = 350.0
	DefaultNodeSpacing         = 250.0
	DefaultBaseX               = 50.0
	DefaultBaseY               = 50.0
	DefaultNodeWidth           = 280.0
	DefaultNodeHeight          = 220.0
	DefaultAnnotatedNodeHeight = 240.0
	DefaultMaxLayerWidth       = 8
	DefaultOverlapTolerance    = 0.1

	// QualityMaxLayerWidth is the layer width limit of [ProfileQuality].
	QualityMaxLayerWidth = 6
)

// Alignment selects how layers are placed vertically relative to each other.
type Alignment string

const (
	// AlignTop starts every layer at the base Y coordinate.
	AlignTop Alignment = "top"
	// AlignCenter centers every layer on the tallest one.
	AlignCenter Alignment = "center"
)

// CycleHandling selects what happens to cycles in the input.
type CycleHandling string

const (
	// CycleBreak detects cycles and breaks each at its least disruptive edge.
	CycleBreak CycleHandling = "break"
	// CycleHighlight detects and reports cycles but breaks them only as far
	// as layering needs, without scoring edges.
	CycleHighlight CycleHandling = "highlight"
	// CycleIgnore skips cycle reporting entirely.
	CycleIgnore CycleHandling = "ignore"
)

// Profile is a bundle of defaults.
type Profile string

const (
	// ProfileSpeed turns off crossing minimization and balancing.
	ProfileSpeed Profile = "speed"
	// ProfileQuality turns both on and narrows layers.
	ProfileQuality Profile = "quality"
	// ProfileBalanced uses the documented defaults.
	ProfileBalanced Profile = "balanced"
)

// Point is a coordinate in layout space.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// =============================================================================
// Config - resolved, immutable settings
// =============================================================================

// Config holds fully resolved layout settings. It is a plain value: every
// layout run gets its own copy and nothing mutates it after [Options.Resolve].
type Config struct {
	LayerSpacing          float64       `json:"layer_spacing"`
	NodeSpacing           float64       `json:"node_spacing"`
	Base                  Point         `json:"base_position"`
	NodeWidth             float64       `json:"node_width"`
	NodeHeight            float64       `json:"node_height"`
	AnnotatedNodeHeight   float64       `json:"annotated_node_height"`
	MaxLayerWidth         int           `json:"max_layer_width"`
	Alignment             Alignment     `json:"alignment"`
	OptimizeBalance       bool          `json:"optimize_balance"`
	MinimizeEdgeCrossings bool          `json:"minimize_edge_crossings"`
	CycleHandling         CycleHandling `json:"cycle_handling"`
	Profile               Profile       `json:"optimization_profile"`
	OverlapTolerance      float64       `json:"overlap_tolerance"`
}

// DefaultConfig returns the balanced defaults.
func DefaultConfig() Config {
	return Config{
		LayerSpacing:          DefaultLayerSpacing,
		NodeSpacing:           DefaultNodeSpacing,
		Base:                  Point{X: DefaultBaseX, Y: DefaultBaseY},
		NodeWidth:             DefaultNodeWidth,
		NodeHeight:            DefaultNodeHeight,
		AnnotatedNodeHeight:   DefaultAnnotatedNodeHeight,
		MaxLayerWidth:         DefaultMaxLayerWidth,
		Alignment:             AlignTop,
		OptimizeBalance:       true,
		MinimizeEdgeCrossings: true,
		CycleHandling:         CycleBreak,
		Profile:               ProfileBalanced,
		OverlapTolerance:      DefaultOverlapTolerance,
	}
}

// TallestNode returns the height of the tallest node box.
func (c Config) TallestNode() float64 {
	return max(c.NodeHeight, c.AnnotatedNodeHeight)
}

// NodeSize returns the box size of a node.
func (c Config) NodeSize(annotated bool) (w, h float64) {
	if annotated {
		return c.NodeWidth, c.AnnotatedNodeHeight
	}
	return c.NodeWidth, c.NodeHeight
}

// =============================================================================
// Options - user overrides
// =============================================================================

// Options carries user overrides. Nil fields fall back to the profile, then
// to the defaults. Options decodes from JSON request bodies and TOML config
// files alike.
type Options struct {
	LayerSpacing          *float64       `json:"layer_spacing,omitempty" toml:"layer_spacing"`
	NodeSpacing           *float64       `json:"node_spacing,omitempty" toml:"node_spacing"`
	Base                  *Point         `json:"base_position,omitempty" toml:"base_position"`
	NodeWidth             *float64       `json:"node_width,omitempty" toml:"node_width"`
	NodeHeight            *float64       `json:"node_height,omitempty" toml:"node_height"`
	AnnotatedNodeHeight   *float64       `json:"annotated_node_height,omitempty" toml:"annotated_node_height"`
	MaxLayerWidth         *int           `json:"max_layer_width,omitempty" toml:"max_layer_width"`
	Alignment             *Alignment     `json:"alignment,omitempty" toml:"alignment"`
	OptimizeBalance       *bool          `json:"optimize_balance,omitempty" toml:"optimize_balance"`
	MinimizeEdgeCrossings *bool          `json:"minimize_edge_crossings,omitempty" toml:"minimize_edge_crossings"`
	CycleHandling         *CycleHandling `json:"cycle_handling,omitempty" toml:"cycle_handling"`
	Profile               *Profile       `json:"optimization_profile,omitempty" toml:"optimization_profile"`
	OverlapTolerance      *float64       `json:"overlap_tolerance,omitempty" toml:"overlap_tolerance"`
}

// Ptr returns a pointer to v, for filling [Options] literals.
func Ptr[T any](v T) *T { return &v }

// Merge returns o with every field that is set in over replaced.
func (o Options) Merge(over Options) Options {
	pick(&o.LayerSpacing, over.LayerSpacing)
	pick(&o.NodeSpacing, over.NodeSpacing)
	pick(&o.Base, over.Base)
	pick(&o.NodeWidth, over.NodeWidth)
	pick(&o.NodeHeight, over.NodeHeight)
	pick(&o.AnnotatedNodeHeight, over.AnnotatedNodeHeight)
	pick(&o.MaxLayerWidth, over.MaxLayerWidth)
	pick(&o.Alignment, over.Alignment)
	pick(&o.OptimizeBalance, over.OptimizeBalance)
	pick(&o.MinimizeEdgeCrossings, over.MinimizeEdgeCrossings)
	pick(&o.CycleHandling, over.CycleHandling)
	pick(&o.Profile, over.Profile)
	pick(&o.OverlapTolerance, over.OverlapTolerance)
	return o
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func apply[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Resolve merges o over the profile bundle and the defaults, then checks the
// result. Errors carry [errors.ErrCodeInvalidConfig].
//
// MaxLayerWidth is not range-checked here; the orchestrator clamps it and
// reports the adjustment.
func (o Options) Resolve() (Config, error) {
	cfg := DefaultConfig()

	profile := ProfileBalanced
	apply(&profile, o.Profile)
	switch profile {
	case ProfileBalanced:
	case ProfileSpeed:
		cfg.MinimizeEdgeCrossings = false
		cfg.OptimizeBalance = false
	case ProfileQuality:
		cfg.MinimizeEdgeCrossings = true
		cfg.OptimizeBalance = true
		cfg.MaxLayerWidth = QualityMaxLayerWidth
	default:
		return Config{}, errors.New(errors.ErrCodeInvalidConfig,
			"invalid optimization_profile: %q (must be one of: speed, quality, balanced)", profile)
	}
	cfg.Profile = profile

	apply(&cfg.LayerSpacing, o.LayerSpacing)
	apply(&cfg.NodeSpacing, o.NodeSpacing)
	apply(&cfg.Base, o.Base)
	apply(&cfg.NodeWidth, o.NodeWidth)
	apply(&cfg.NodeHeight, o.NodeHeight)
	apply(&cfg.AnnotatedNodeHeight, o.AnnotatedNodeHeight)
	apply(&cfg.MaxLayerWidth, o.MaxLayerWidth)
	apply(&cfg.Alignment, o.Alignment)
	apply(&cfg.OptimizeBalance, o.OptimizeBalance)
	apply(&cfg.MinimizeEdgeCrossings, o.MinimizeEdgeCrossings)
	apply(&cfg.CycleHandling, o.CycleHandling)
	apply(&cfg.OverlapTolerance, o.OverlapTolerance)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enum values and numeric ranges.
func (c Config) Validate() error {
	switch c.Alignment {
	case AlignTop, AlignCenter:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid alignment: %q (must be one of: top, center)", c.Alignment)
	}
	switch c.CycleHandling {
	case CycleBreak, CycleHighlight, CycleIgnore:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid cycle_handling: %q (must be one of: break, highlight, ignore)", c.CycleHandling)
	}

	positive := []struct {
		name string
		v    float64
	}{
		{"layer_spacing", c.LayerSpacing},
		{"node_spacing", c.NodeSpacing},
		{"node_width", c.NodeWidth},
		{"node_height", c.NodeHeight},
		{"annotated_node_height", c.AnnotatedNodeHeight},
	}
	for _, p := range positive {
		if err := checkFinite(p.name, p.v); err != nil {
			return err
		}
		if p.v <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be positive, got %v", p.name, p.v)
		}
	}
	if err := checkFinite("base_position.x", c.Base.X); err != nil {
		return err
	}
	if err := checkFinite("base_position.y", c.Base.Y); err != nil {
		return err
	}
	if c.OverlapTolerance < 0 || c.OverlapTolerance > 1 || math.IsNaN(c.OverlapTolerance) {
		return errors.New(errors.ErrCodeInvalidConfig, "overlap_tolerance must be within [0, 1], got %v", c.OverlapTolerance)
	}
	return nil
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "%s must be a finite number, got %v", name, v)
	}
	return nil
}

// String renders the settings that shape a layout, for logs.
func (c Config) String() string {
	return fmt.Sprintf("profile=%s spacing=%gx%g max_width=%d align=%s balance=%t crossings=%t cycles=%s",
		c.Profile, c.LayerSpacing, c.NodeSpacing, c.MaxLayerWidth, c.Alignment,
		c.OptimizeBalance, c.MinimizeEdgeCrossings, c.CycleHandling)
}
