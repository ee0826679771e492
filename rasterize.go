package mmdrender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// measureScript reads the natural, unclipped size of the loaded document.
const measureScript = `({width: document.documentElement.scrollWidth, height: document.documentElement.scrollHeight})`

// layoutSize is the page-reported document size in CSS pixels.
type layoutSize struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// rasterize reloads tab with svg as an image document, measures it, and
// captures a PNG of the full layout at the given scale.
func (r *Renderer) rasterize(ctx context.Context, tab Tab, svg string, scale float64) (*Result, error) {
	if err := tab.Navigate(ctx, svgDataURL(svg)); err != nil {
		return nil, stepError(ctx, ErrCaptureNavigate, err)
	}
	if err := tab.WaitLoad(ctx); err != nil {
		return nil, stepError(ctx, ErrCaptureWait, err)
	}

	raw, err := tab.Evaluate(ctx, measureScript, false)
	if err != nil {
		return nil, stepError(ctx, ErrMeasure, err)
	}
	width, height, err := parseLayoutSize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMeasure, err)
	}

	clip := captureViewport(width, height, scale)
	png, err := tab.Capture(ctx, clip)
	if err != nil {
		return nil, stepError(ctx, ErrScreenshot, err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrScreenshot)
	}

	return &Result{
		Data:        png,
		ContentType: ContentTypePNG,
		Width:       int(math.Round(clip.Width * scale)),
		Height:      int(math.Round(clip.Height * scale)),
	}, nil
}

// parseLayoutSize decodes the measurement result.
func parseLayoutSize(raw string) (width, height float64, err error) {
	var size layoutSize
	if err := json.Unmarshal([]byte(raw), &size); err != nil {
		return 0, 0, fmt.Errorf("decoding %q: %w", raw, err)
	}
	if size.Width == nil || size.Height == nil {
		return 0, 0, errors.New("missing width or height")
	}
	return *size.Width, *size.Height, nil
}

// captureViewport builds the clip at the origin, sized to the measured layout
// rounded to whole pixels. A zero dimension is passed through unchanged.
func captureViewport(width, height, scale float64) Viewport {
	return Viewport{
		X:      0,
		Y:      0,
		Width:  wholePixels(width),
		Height: wholePixels(height),
		Scale:  scale,
	}
}

// wholePixels rounds v to a non-negative integer value.
func wholePixels(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return math.Round(v)
}
