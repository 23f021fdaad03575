// Package layout turns a layer assignment into coordinates and grades the
// result.
//
// # Configuration
//
// [Options] holds user overrides as pointers so that "unset" and "false" are
// different things. [Options.Resolve] applies them over an optimization
// profile and the defaults and returns a [Config], an immutable value that
// every stage of one run reads. Two runs never share a Config.
//
//	cfg, err := layout.Options{
//	    Profile:   layout.Ptr(layout.ProfileQuality),
//	    Alignment: layout.Ptr(layout.AlignCenter),
//	}.Resolve()
//
// # Positioning
//
// [PositionNodes] places layers left to right, LayerSpacing apart, and the
// nodes of a layer top to bottom, NodeSpacing apart. Optional median-based
// reordering reduces edge crossings between adjacent layers. Positions are
// the top-left corners of node boxes; a node is NodeWidth wide and
// NodeHeight tall, or AnnotatedNodeHeight when it carries an annotation.
//
// # Validation
//
// [Validate] checks that every non-feedback edge points forward, looks for
// overlapping boxes and suggests configuration changes. Its findings are
// structured values; callers decide how to present them.
package layout
