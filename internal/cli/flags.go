package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/flowlayout/pkg/layout"
)

// layoutFlags binds the layout options to command flags. Only flags the user
// actually set end up in the resulting options, so profile values and the
// config file are not overridden by flag defaults.
type layoutFlags struct {
	profile       string
	layerSpacing  float64
	nodeSpacing   float64
	maxLayerWidth int
	alignment     string
	balance       bool
	crossings     bool
	cycles        string
	tolerance     float64
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	def := layout.DefaultConfig()
	fs := cmd.Flags()
	fs.StringVarP(&f.profile, "profile", "p", string(def.Profile), "optimization profile: speed, quality, balanced")
	fs.Float64Var(&f.layerSpacing, "layer-spacing", def.LayerSpacing, "horizontal distance between layers")
	fs.Float64Var(&f.nodeSpacing, "node-spacing", def.NodeSpacing, "vertical distance between nodes in a layer")
	fs.IntVar(&f.maxLayerWidth, "max-layer-width", def.MaxLayerWidth, "nodes per layer before balancing moves them on")
	fs.StringVar(&f.alignment, "align", string(def.Alignment), "vertical alignment of layers: top, center")
	fs.BoolVar(&f.balance, "balance", def.OptimizeBalance, "relocate nodes out of overfull layers")
	fs.BoolVar(&f.crossings, "crossings", def.MinimizeEdgeCrossings, "reorder layers to reduce edge crossings")
	fs.StringVar(&f.cycles, "cycles", string(def.CycleHandling), "cycle handling: break, highlight, ignore")
	fs.Float64Var(&f.tolerance, "overlap-tolerance", def.OverlapTolerance, "shared area ratio reported as overlap")

	_ = cmd.RegisterFlagCompletionFunc("profile", fixedCompletion("speed", "quality", "balanced"))
	_ = cmd.RegisterFlagCompletionFunc("align", fixedCompletion("top", "center"))
	_ = cmd.RegisterFlagCompletionFunc("cycles", fixedCompletion("break", "highlight", "ignore"))
}

// options returns the explicitly set flags as layout options.
func (f *layoutFlags) options(fs *pflag.FlagSet) layout.Options {
	var o layout.Options
	set := fs.Changed
	if set("profile") {
		o.Profile = layout.Ptr(layout.Profile(f.profile))
	}
	if set("layer-spacing") {
		o.LayerSpacing = layout.Ptr(f.layerSpacing)
	}
	if set("node-spacing") {
		o.NodeSpacing = layout.Ptr(f.nodeSpacing)
	}
	if set("max-layer-width") {
		o.MaxLayerWidth = layout.Ptr(f.maxLayerWidth)
	}
	if set("align") {
		o.Alignment = layout.Ptr(layout.Alignment(f.alignment))
	}
	if set("balance") {
		o.OptimizeBalance = layout.Ptr(f.balance)
	}
	if set("crossings") {
		o.MinimizeEdgeCrossings = layout.Ptr(f.crossings)
	}
	if set("cycles") {
		o.CycleHandling = layout.Ptr(layout.CycleHandling(f.cycles))
	}
	if set("overlap-tolerance") {
		o.OverlapTolerance = layout.Ptr(f.tolerance)
	}
	return o
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
