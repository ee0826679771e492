package mmdrender

import "context"

// Browser abstracts the long-lived rendering engine so the pipeline can be
// tested without Chrome. A Browser is shared by all renders.
type Browser interface {
	// NewTab opens a fresh, isolated page. An error usually means the
	// engine process is dead or unresponsive.
	NewTab() (Tab, error)

	// Close shuts the engine down and releases its process.
	Close() error
}

// Tab is one isolated page owned by a single render.
// Every blocking call must return when ctx is done.
type Tab interface {
	// Navigate loads url into the page.
	Navigate(ctx context.Context, url string) error

	// WaitLoad blocks until the current document has finished loading.
	WaitLoad(ctx context.Context) error

	// Evaluate runs expr in the page's global scope and returns the JSON
	// text of its value ("null" for null or undefined). If awaitPromise is
	// set and expr yields a promise, the settled value is returned.
	// A thrown exception is reported as an error.
	Evaluate(ctx context.Context, expr string, awaitPromise bool) (string, error)

	// Capture takes a PNG screenshot clipped to clip, including content
	// beyond the visible viewport.
	Capture(ctx context.Context, clip Viewport) ([]byte, error)

	// Close closes the page. It must not depend on the render context.
	Close() error
}

// Viewport is a capture rectangle in CSS pixels with a device scale factor.
type Viewport struct {
	X, Y          float64
	Width, Height float64
	Scale         float64
}

// LaunchFunc starts a new Browser. The pool calls it once at startup and again
// whenever the current Browser can no longer open tabs.
type LaunchFunc func() (Browser, error)
