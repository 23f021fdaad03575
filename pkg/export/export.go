package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/flowlayout/pkg/errors"
	"github.com/matzehuels/flowlayout/pkg/pipeline"
)

// Format is an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatDOT  Format = "dot"
	FormatSVG  Format = "svg"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatDOT, FormatSVG}

// Options configures DOT and SVG output. JSON ignores it.
type Options struct {
	// Detailed adds node type and layer to labels.
	Detailed bool
	// Conditions labels edges with their transition condition.
	Conditions bool
}

// ValidateFormat returns an INVALID_FORMAT error if f is not supported.
// Matching is case-sensitive.
func ValidateFormat(f string) error {
	if slices.Contains(Formats, Format(f)) {
		return nil
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: %s)", f, strings.Join(names, ", "))
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if err := ValidateFormat(ext); err != nil {
		return "", err
	}
	return Format(ext), nil
}

// Write encodes res in the given format to w.
func Write(ctx context.Context, w io.Writer, res *pipeline.Result, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatDOT:
		_, err := io.WriteString(w, ToDOT(res, opts))
		return err
	case FormatSVG:
		svg, err := RenderSVG(ctx, ToDOT(res, opts))
		if err != nil {
			return err
		}
		_, err = w.Write(svg)
		return err
	default:
		return ValidateFormat(string(f))
	}
}

// WriteFile writes res to path. The file is only created once encoding has
// succeeded.
func WriteFile(ctx context.Context, path string, res *pipeline.Result, f Format, opts Options) error {
	var buf bytes.Buffer
	if err := Write(ctx, &buf, res, f, opts); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
