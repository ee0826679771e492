package mmdrender

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// browserPool owns the single shared Browser and hands out tabs.
// The mutex guards the Browser field and is held only while a tab is created
// or the Browser is replaced, never while a tab is in use or a Browser is
// being shut down.
type browserPool struct {
	mu       sync.Mutex
	browser  Browser
	launch   LaunchFunc
	closed   bool
	restarts int

	// retiring tracks replaced Browsers still shutting down.
	retiring sync.WaitGroup

	log      *zap.Logger
	observer Observer
}

// newBrowserPool launches the first Browser.
func newBrowserPool(launch LaunchFunc, log *zap.Logger, observer Observer) (*browserPool, error) {
	b, err := launch()
	if err != nil {
		return nil, err
	}
	return &browserPool{
		browser:  b,
		launch:   launch,
		log:      log,
		observer: observer,
	}, nil
}

// acquire opens a new tab. If the current Browser fails to open one, it is
// replaced by a freshly launched Browser and tab creation is retried exactly
// once. A second failure is returned to the caller without further attempts.
func (p *browserPool) acquire() (Tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrRendererClosed
	}

	tab, err := p.browser.NewTab()
	if err == nil {
		p.observer.TabOpened()
		return tab, nil
	}

	p.log.Warn("tab creation failed, restarting browser", zap.Error(err))

	fresh, launchErr := p.launch()
	if launchErr != nil {
		p.observer.BrowserRestarted(false)
		p.log.Error("browser restart failed", zap.Error(launchErr))
		return nil, fmt.Errorf("%w: %v", ErrBrowserRestart, launchErr)
	}

	old := p.browser
	p.browser = fresh
	p.restarts++
	p.observer.BrowserRestarted(true)

	// The old engine is presumed dead and may not answer; reap it in the
	// background so a hung close never holds the lock.
	p.retire(old)

	tab, err = p.browser.NewTab()
	if err != nil {
		p.log.Error("tab creation failed after restart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrTabCreate, err)
	}
	p.observer.TabOpened()
	return tab, nil
}

// retire closes a replaced Browser without blocking the caller.
func (p *browserPool) retire(old Browser) {
	p.retiring.Add(1)
	go func() {
		defer p.retiring.Done()
		if err := old.Close(); err != nil {
			p.log.Debug("closing replaced browser", zap.Error(err))
		}
	}()
}

// restartCount returns how many times the Browser has been replaced.
func (p *browserPool) restartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// close shuts the current Browser down. Later acquires fail immediately,
// even while the shutdown is still in progress.
func (p *browserPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	b := p.browser
	p.mu.Unlock()

	return b.Close()
}
