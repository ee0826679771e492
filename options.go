package mmdrender

import (
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single render when no timeout is specified.
const DefaultTimeout = 30 * time.Second

// Option configures a Renderer.
type Option func(*rendererConfig)

// rendererConfig holds internal configuration for Renderer.
type rendererConfig struct {
	timeout       time.Duration
	maxTextLength int
	maxScale      float64
	logger        *zap.Logger
	observer      Observer
	launch        LaunchFunc

	// Payload: either injected directly or resolved through internal/assets.
	sandbox    string
	script     string
	hasPayload bool
	assetPath  string
	payloadURL string
	cacheDir   string
	offline    bool

	// Browser launch settings for the default rod engine.
	browserBin string
	noSandbox  bool
}

func defaultRendererConfig() rendererConfig {
	return rendererConfig{
		timeout:       DefaultTimeout,
		maxTextLength: DefaultMaxTextLength,
		maxScale:      MaxScale,
		logger:        zap.NewNop(),
		observer:      nopObserver{},
	}
}

// WithTimeout sets the per-render deadline. When it expires the current step
// fails with ErrTimeout and the tab is closed.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("mmdrender: WithTimeout duration must be positive")
	}
	return func(c *rendererConfig) {
		c.timeout = d
	}
}

// WithMaxTextLength caps the diagram source size in bytes. 0 disables the cap.
func WithMaxTextLength(n int) Option {
	return func(c *rendererConfig) {
		if n >= 0 {
			c.maxTextLength = n
		}
	}
}

// WithMaxScale lowers the largest accepted PNG scale. Values outside
// (0, MaxScale] are ignored.
func WithMaxScale(s float64) Option {
	return func(c *rendererConfig) {
		if s > 0 && s <= MaxScale {
			c.maxScale = s
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *rendererConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers lifecycle callbacks (metrics, tests).
func WithObserver(o Observer) Option {
	return func(c *rendererConfig) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLauncher replaces the default go-rod engine.
func WithLauncher(fn LaunchFunc) Option {
	return func(c *rendererConfig) {
		c.launch = fn
	}
}

// WithPayload injects the sandbox document and the rendering script directly,
// bypassing asset resolution.
func WithPayload(sandboxHTML, script string) Option {
	return func(c *rendererConfig) {
		c.sandbox = sandboxHTML
		c.script = script
		c.hasPayload = true
	}
}

// WithAssetPath sets a directory whose files override the embedded sandbox,
// glue script, and provide mermaid.min.js.
func WithAssetPath(dir string) Option {
	return func(c *rendererConfig) {
		c.assetPath = dir
	}
}

// WithPayloadURL sets where the Mermaid library is downloaded from when it is
// neither in the asset directory nor in the cache.
func WithPayloadURL(url string) Option {
	return func(c *rendererConfig) {
		c.payloadURL = url
	}
}

// WithCacheDir sets the directory holding the downloaded Mermaid library.
func WithCacheDir(dir string) Option {
	return func(c *rendererConfig) {
		c.cacheDir = dir
	}
}

// WithOffline disables downloading the Mermaid library.
func WithOffline(offline bool) Option {
	return func(c *rendererConfig) {
		c.offline = offline
	}
}

// WithBrowserBin sets the Chrome binary used by the default engine.
func WithBrowserBin(path string) Option {
	return func(c *rendererConfig) {
		c.browserBin = path
	}
}

// WithNoSandbox disables the Chrome sandbox (containers, CI).
func WithNoSandbox(noSandbox bool) Option {
	return func(c *rendererConfig) {
		c.noSandbox = noSandbox
	}
}
