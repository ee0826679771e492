package mmdrender

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Scripted browser and tab
// ---------------------------------------------------------------------------

// Pipeline steps a fakeTab can fail, block, or panic on.
const (
	stepNavigate        = "navigate"
	stepWait            = "wait"
	stepPayload         = "payload"
	stepEvaluate        = "evaluate"
	stepCaptureNavigate = "capture-navigate"
	stepCaptureWait     = "capture-wait"
	stepMeasure         = "measure"
	stepCapture         = "capture"
)

var errInjected = errors.New("injected failure")

// fakeTab answers the pipeline calls without a browser.
type fakeTab struct {
	failAt  string // step returning errInjected
	blockAt string // step waiting for ctx.Done
	panicAt string // step panicking

	renderResult  string // JSON text returned by the render call
	measureResult string // JSON text returned by the measure script
	png           []byte

	mu      sync.Mutex
	lastURL string
	steps   []string
	clip    Viewport
	closes  atomic.Int32
}

func newFakeTab() *fakeTab {
	return &fakeTab{
		renderResult:  quoteJSON(`<svg id="d"><g/></svg>`),
		measureResult: `{"width":120.4,"height":79.6}`,
		png:           []byte("\x89PNG fake"),
	}
}

func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (t *fakeTab) step(ctx context.Context, name string) error {
	t.mu.Lock()
	t.steps = append(t.steps, name)
	t.mu.Unlock()

	switch name {
	case t.panicAt:
		panic("tab exploded at " + name)
	case t.blockAt:
		<-ctx.Done()
		return ctx.Err()
	case t.failAt:
		return errInjected
	}
	return nil
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	t.mu.Lock()
	t.lastURL = url
	t.mu.Unlock()
	if strings.HasPrefix(url, svgDataPrefix) {
		return t.step(ctx, stepCaptureNavigate)
	}
	return t.step(ctx, stepNavigate)
}

func (t *fakeTab) WaitLoad(ctx context.Context) error {
	t.mu.Lock()
	url := t.lastURL
	t.mu.Unlock()
	if strings.HasPrefix(url, svgDataPrefix) {
		return t.step(ctx, stepCaptureWait)
	}
	return t.step(ctx, stepWait)
}

func (t *fakeTab) Evaluate(ctx context.Context, expr string, _ bool) (string, error) {
	switch {
	case expr == measureScript:
		if err := t.step(ctx, stepMeasure); err != nil {
			return "", err
		}
		return t.measureResult, nil
	case strings.HasPrefix(expr, "render("):
		if err := t.step(ctx, stepEvaluate); err != nil {
			return "", err
		}
		return t.renderResult, nil
	default:
		if err := t.step(ctx, stepPayload); err != nil {
			return "", err
		}
		return "null", nil
	}
}

func (t *fakeTab) Capture(ctx context.Context, clip Viewport) ([]byte, error) {
	t.mu.Lock()
	t.clip = clip
	t.mu.Unlock()
	if err := t.step(ctx, stepCapture); err != nil {
		return nil, err
	}
	return t.png, nil
}

func (t *fakeTab) Close() error {
	t.closes.Add(1)
	return nil
}

// fakeBrowser hands out tabs from newTab. When closeGate is set, Close
// blocks until the gate is closed, like a browser that stopped answering.
type fakeBrowser struct {
	newTab    func() (Tab, error)
	closeGate chan struct{}
	tabs      atomic.Int32
	closes    atomic.Int32
}

func (b *fakeBrowser) NewTab() (Tab, error) {
	b.tabs.Add(1)
	return b.newTab()
}

func (b *fakeBrowser) Close() error {
	b.closes.Add(1)
	if b.closeGate != nil {
		<-b.closeGate
	}
	return nil
}

// browserFor returns a browser that always opens tab.
func browserFor(tab Tab) *fakeBrowser {
	return &fakeBrowser{newTab: func() (Tab, error) { return tab, nil }}
}

// launchSequence returns a LaunchFunc yielding browsers in order, then errors.
func launchSequence(browsers ...Browser) (LaunchFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func() (Browser, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(browsers) || browsers[n] == nil {
			return nil, errors.New("launch failed")
		}
		return browsers[n], nil
	}, &calls
}

// countingObserver records lifecycle events.
type countingObserver struct {
	opened   atomic.Int32
	closed   atomic.Int32
	restarts atomic.Int32
	failed   atomic.Int32

	mu      sync.Mutex
	formats []Format
	kinds   []ErrorKind
}

func (o *countingObserver) TabOpened() { o.opened.Add(1) }
func (o *countingObserver) TabClosed() { o.closed.Add(1) }

func (o *countingObserver) BrowserRestarted(ok bool) {
	if ok {
		o.restarts.Add(1)
		return
	}
	o.failed.Add(1)
}

func (o *countingObserver) RenderDone(format Format, kind ErrorKind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.formats = append(o.formats, format)
	o.kinds = append(o.kinds, kind)
}

func (o *countingObserver) lastFormat() Format {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.formats) == 0 {
		return ""
	}
	return o.formats[len(o.formats)-1]
}

func (o *countingObserver) lastKind() ErrorKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.kinds) == 0 {
		return ""
	}
	return o.kinds[len(o.kinds)-1]
}

// newTestRenderer builds a Renderer on launch with an injected payload.
func newTestRenderer(launch LaunchFunc, opts ...Option) (*Renderer, error) {
	base := []Option{
		WithPayload("<html><body></body></html>", "function render(t) { return t; }"),
		WithLauncher(launch),
	}
	return NewRenderer(append(base, opts...)...)
}
