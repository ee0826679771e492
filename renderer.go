package mmdrender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-mmdrender/internal/assets"
	"github.com/alnah/go-mmdrender/internal/jsstring"
)

// Renderer turns Mermaid source into SVG or PNG using one shared browser.
// It is safe for concurrent use: each call runs in its own tab.
// Create with NewRenderer, call Render, and Close when done.
type Renderer struct {
	cfg        rendererConfig
	pool       *browserPool
	sandboxURL string
	payload    string
	log        *zap.Logger
	observer   Observer
}

// NewRenderer loads the payload, launches the browser, and returns a ready
// Renderer. Without WithPayload, the sandbox and glue script come from
// embedded assets and the Mermaid library from the asset directory, the cache,
// or a download (see internal/assets).
func NewRenderer(opts ...Option) (*Renderer, error) {
	cfg := defaultRendererConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.hasPayload {
		payload, err := assets.LoadPayload(assets.PayloadOptions{
			BasePath: cfg.assetPath,
			CacheDir: cfg.cacheDir,
			URL:      cfg.payloadURL,
			Offline:  cfg.offline,
			Logger:   cfg.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("loading payload: %w", err)
		}
		cfg.sandbox = payload.Sandbox
		cfg.script = payload.Script
	}

	if cfg.launch == nil {
		cfg.launch = rodLauncher(rodOptions{bin: cfg.browserBin, noSandbox: cfg.noSandbox})
	}

	pool, err := newBrowserPool(cfg.launch, cfg.logger, cfg.observer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	return &Renderer{
		cfg:        cfg,
		pool:       pool,
		sandboxURL: htmlDataURL(cfg.sandbox),
		payload:    cfg.script,
		log:        cfg.logger,
		observer:   cfg.observer,
	}, nil
}

// Render runs the pipeline for req: acquire a tab, load the sandbox, inject
// the payload, evaluate the diagram, validate the markup and, for PNG,
// rasterize it. The tab is closed before Render returns, whatever the outcome.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (r *Renderer) Render(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	req = req.withDefaults()

	defer func() {
		elapsed := time.Since(start)
		kind := KindOf(err)
		r.observer.RenderDone(req.Format, kind, elapsed)
		if err != nil {
			r.log.Debug("render failed",
				zap.String("format", string(req.Format)),
				zap.String("kind", string(kind)),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			return
		}
		result.Duration = elapsed
		r.log.Debug("render done",
			zap.String("format", string(req.Format)),
			zap.Int("bytes", len(result.Data)),
			zap.Duration("elapsed", elapsed))
	}()
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("internal error: %v", p)
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Scale > r.cfg.maxScale {
		return nil, fmt.Errorf("%w: %v (max %v)", ErrInvalidScale, req.Scale, r.cfg.maxScale)
	}
	if r.cfg.maxTextLength > 0 && len(req.Text) > r.cfg.maxTextLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTextTooLong, len(req.Text), r.cfg.maxTextLength)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	tab, err := r.pool.acquire()
	if err != nil {
		return nil, err
	}
	defer r.release(tab)

	svg, err := r.renderMarkup(ctx, tab, req.Text)
	if err != nil {
		return nil, err
	}

	if req.Format == FormatPNG {
		return r.rasterize(ctx, tab, svg, req.Scale)
	}
	return &Result{Data: []byte(svg), ContentType: ContentTypeSVG}, nil
}

// RenderSVG renders text to SVG markup.
func (r *Renderer) RenderSVG(ctx context.Context, text string) (string, error) {
	res, err := r.Render(ctx, Request{Text: text, Format: FormatSVG})
	if err != nil {
		return "", err
	}
	return res.SVG(), nil
}

// Restarts reports how many times the browser was replaced after a failure.
func (r *Renderer) Restarts() int {
	return r.pool.restartCount()
}

// Close releases the browser. Renders started afterwards fail with ErrRendererClosed.
func (r *Renderer) Close() error {
	return r.pool.close()
}

// renderMarkup drives the vector path on tab and returns validated SVG.
func (r *Renderer) renderMarkup(ctx context.Context, tab Tab, text string) (string, error) {
	if err := tab.Navigate(ctx, r.sandboxURL); err != nil {
		return "", stepError(ctx, ErrNavigate, err)
	}
	if err := tab.WaitLoad(ctx); err != nil {
		return "", stepError(ctx, ErrNavigate, err)
	}

	if _, err := tab.Evaluate(ctx, r.payload, false); err != nil {
		return "", stepError(ctx, ErrPayloadEval, err)
	}

	raw, err := tab.Evaluate(ctx, renderCall(text), true)
	if err != nil {
		return "", stepError(ctx, ErrEvaluate, err)
	}

	return validateMarkup(raw)
}

// release closes tab. Called exactly once per acquired tab.
func (r *Renderer) release(tab Tab) {
	if err := tab.Close(); err != nil {
		r.log.Debug("closing tab", zap.Error(err))
	}
	r.observer.TabClosed()
}

// renderCall builds the script that invokes the page's render function with
// text embedded as a string literal.
func renderCall(text string) string {
	return "render(" + jsstring.Quote(text) + ")"
}

// validateMarkup decodes the JSON text returned by the render call.
// The renderer signals failure with null or an empty string.
func validateMarkup(raw string) (string, error) {
	markup, err := jsstring.Unquote(raw)
	if err != nil {
		return "", fmt.Errorf("%w: decoding result: %v", ErrRenderEmpty, err)
	}
	if markup == "" || markup == "null" {
		return "", ErrRenderEmpty
	}
	return markup, nil
}

// stepError wraps a step failure with its sentinel. If the render deadline
// expired the error also matches ErrTimeout; caller cancellation keeps
// context.Canceled in the chain.
func stepError(ctx context.Context, sentinel, cause error) error {
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w: %v", ErrTimeout, sentinel, cause)
	case ctxErr != nil:
		return fmt.Errorf("%w: %w", sentinel, ctxErr)
	default:
		return fmt.Errorf("%w: %v", sentinel, cause)
	}
}
