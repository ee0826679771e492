// Package mmdrender renders Mermaid diagrams to SVG or PNG using headless Chrome.
//
// # Quick Start
//
// Create a renderer, render, and close when done:
//
//	r, err := mmdrender.NewRenderer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	svg, err := r.RenderSVG(ctx, "graph TD; A-->B")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For PNG output, use Render with a Request:
//
//	res, err := r.Render(ctx, mmdrender.Request{
//	    Text:   "graph TD; A-->B",
//	    Format: mmdrender.FormatPNG,
//	    Scale:  2,
//	})
//	os.WriteFile("diagram.png", res.Data, 0644)
//
// # Rendering Pipeline
//
// One Chrome process is shared by all renders. Each render runs in its own tab:
//
//  1. Load the sandbox page from a data URL
//  2. Evaluate the payload (Mermaid library and the render function)
//  3. Call render(text) and await the SVG markup
//  4. For PNG, load the markup as an image document, measure it, and
//     capture a screenshot clipped to the measured size at the given scale
//
// The tab is closed before Render returns, whatever the outcome. If Chrome can
// no longer open tabs, it is relaunched once and tab creation is retried.
//
// # Errors
//
// Each step fails with its own sentinel (ErrNavigate, ErrEvaluate,
// ErrScreenshot, ...). A step interrupted by the render deadline also matches
// ErrTimeout. KindOf groups errors for metrics and Message returns the short
// caller-facing text:
//
//	if _, err := r.Render(ctx, req); err != nil {
//	    log.Printf("%s (%s)", mmdrender.Message(err), mmdrender.KindOf(err))
//	}
//
// # Configuration
//
//	r, err := mmdrender.NewRenderer(
//	    mmdrender.WithTimeout(10 * time.Second),
//	    mmdrender.WithAssetPath("/srv/mermaid"),
//	    mmdrender.WithOffline(true),
//	    mmdrender.WithLogger(logger),
//	)
//
// Without WithPayload, the Mermaid library is looked up in the asset
// directory, then in the cache, then downloaded once from a pinned URL.
//
// # Browser Requirements
//
// Rendering requires Chrome/Chromium. The go-rod library automatically
// downloads a managed Chromium instance on first run (~/.cache/rod/browser/).
//
// For containers and CI environments, set ROD_NO_SANDBOX=1 (or use
// WithNoSandbox) to disable the Chrome sandbox. Use ROD_BROWSER_BIN to specify
// a custom Chrome binary.
package mmdrender
