package mmdrender

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-mmdrender/internal/process"
)

// Compile-time interface checks.
var (
	_ Browser = (*rodBrowser)(nil)
	_ Tab     = (*rodTab)(nil)
)

// tabCreateTimeout bounds tab creation so a hung browser cannot hold the
// pool lock forever; the pool then treats it as dead and relaunches.
const tabCreateTimeout = 10 * time.Second

// browserCloseTimeout bounds the graceful Browser.close call; an unresponsive
// browser is killed when it expires.
const browserCloseTimeout = 5 * time.Second

// rodOptions configures the Chrome launcher.
type rodOptions struct {
	bin       string
	noSandbox bool
}

// rodLauncher returns a LaunchFunc starting headless Chrome via go-rod.
// Rod automatically downloads Chromium on first run if not found.
func rodLauncher(opts rodOptions) LaunchFunc {
	return func() (Browser, error) {
		return launchRod(opts)
	}
}

// rodBrowser implements Browser on a launched Chrome process.
type rodBrowser struct {
	browser      *rod.Browser
	launcher     *launcher.Launcher
	closeTimeout time.Duration
}

// launchRod starts Chrome and connects to it.
func launchRod(opts rodOptions) (*rodBrowser, error) {
	l := launcher.New().Headless(true)

	// Use pre-installed browser if specified (Docker/containerized environments)
	bin := opts.bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if opts.noSandbox || bin != "" || os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}

	return &rodBrowser{browser: b, launcher: l, closeTimeout: browserCloseTimeout}, nil
}

// NewTab opens a blank page.
func (b *rodBrowser) NewTab() (Tab, error) {
	page, err := b.browser.Timeout(tabCreateTimeout).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}
	return &rodTab{page: page.CancelTimeout()}, nil
}

// Close asks Chrome to exit, then kills the process tree. Safe on a crashed
// or hung browser: the request is bounded by browserCloseTimeout.
func (b *rodBrowser) Close() error {
	err := b.browser.Timeout(b.closeTimeout).Close()

	pid := b.launcher.PID()
	if pid == 0 {
		// Never launched: there is no process to reap and Cleanup would wait forever.
		return err
	}
	b.launcher.Kill()
	if process.Exists(pid) {
		process.KillProcessGroup(pid)
	}
	b.launcher.Cleanup()

	return err
}

// rodTab implements Tab on a rod page. Each call binds the request context
// to a shallow clone; the stored page keeps the browser context so Close
// still works after the request context is done.
type rodTab struct {
	page *rod.Page
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	return t.page.Context(ctx).Navigate(url)
}

func (t *rodTab) WaitLoad(ctx context.Context) error {
	return t.page.Context(ctx).WaitLoad()
}

// Evaluate uses Runtime.evaluate so the payload script runs in global scope
// and its declarations stay visible to later calls.
func (t *rodTab) Evaluate(ctx context.Context, expr string, awaitPromise bool) (string, error) {
	res, err := proto.RuntimeEvaluate{
		Expression:    expr,
		ReturnByValue: true,
		AwaitPromise:  awaitPromise,
	}.Call(t.page.Context(ctx))
	if err != nil {
		return "", err
	}
	if res.ExceptionDetails != nil {
		return "", exceptionError(res.ExceptionDetails)
	}
	if res.Result == nil {
		return "null", nil
	}
	return res.Result.Value.JSON("", ""), nil
}

func (t *rodTab) Capture(ctx context.Context, clip Viewport) ([]byte, error) {
	return t.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  clip.Scale,
		},
		CaptureBeyondViewport: true,
	})
}

func (t *rodTab) Close() error {
	return t.page.Close()
}

// exceptionError converts a thrown JavaScript exception into an error.
func exceptionError(d *proto.RuntimeExceptionDetails) error {
	msg := strings.TrimSpace(d.Text)
	if d.Exception != nil && d.Exception.Description != "" {
		msg = msg + ": " + d.Exception.Description
	}
	return fmt.Errorf("javascript exception at %d:%d: %s", d.LineNumber, d.ColumnNumber, msg)
}
