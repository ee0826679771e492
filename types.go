package mmdrender

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Format selects the output of a render.
type Format string

// Supported output formats.
const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// Content types reported in Result.ContentType.
const (
	ContentTypeSVG = "image/svg+xml"
	ContentTypePNG = "image/png"
)

// Request bounds and defaults.
const (
	DefaultScale = 1.0
	MaxScale     = 10.0

	// DefaultMaxTextLength caps diagram source size (1 MiB).
	DefaultMaxTextLength = 1 << 20
)

// ParseFormat converts a user-supplied format name (case-insensitive).
// An empty string selects FormatSVG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatSVG):
		return FormatSVG, nil
	case string(FormatPNG):
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %q (must be svg or png)", ErrInvalidFormat, s)
	}
}

// Request describes one render.
type Request struct {
	Text   string  // Diagram source (required, may be empty: the renderer rejects it)
	Format Format  // "svg" (default) or "png"
	Scale  float64 // PNG device scale factor, 0 means DefaultScale
}

// withDefaults fills zero values and puts a recognized format in canonical
// form, so "PNG" and " png " both select the raster path.
func (r Request) withDefaults() Request {
	if f, err := ParseFormat(string(r.Format)); err == nil {
		r.Format = f
	}
	if r.Scale == 0 {
		r.Scale = DefaultScale
	}
	return r
}

// Validate checks format and scale after defaults are applied.
func (r Request) Validate() error {
	r = r.withDefaults()
	if _, err := ParseFormat(string(r.Format)); err != nil {
		return err
	}
	if math.IsNaN(r.Scale) || math.IsInf(r.Scale, 0) || r.Scale <= 0 || r.Scale > MaxScale {
		return fmt.Errorf("%w: %v (must be > 0 and <= %v)", ErrInvalidScale, r.Scale, MaxScale)
	}
	return nil
}

// Result is the output of a successful render.
type Result struct {
	Data        []byte
	ContentType string

	// Width and Height are the pixel size of the PNG: the measured layout
	// size multiplied by the scale, rounded (PNG only).
	Width  int
	Height int

	Duration time.Duration
}

// SVG returns the markup of a vector result, or "" for a raster result.
func (r *Result) SVG() string {
	if r == nil || r.ContentType != ContentTypeSVG {
		return ""
	}
	return string(r.Data)
}
