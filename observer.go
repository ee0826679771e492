package mmdrender

import "time"

// Observer receives lifecycle events from a Renderer. Implementations must be
// safe for concurrent use. internal/metrics provides a Prometheus observer.
type Observer interface {
	TabOpened()
	TabClosed()
	BrowserRestarted(ok bool)
	RenderDone(format Format, kind ErrorKind, elapsed time.Duration)
}

// nopObserver discards all events.
type nopObserver struct{}

func (nopObserver) TabOpened()                                  {}
func (nopObserver) TabClosed()                                  {}
func (nopObserver) BrowserRestarted(bool)                       {}
func (nopObserver) RenderDone(Format, ErrorKind, time.Duration) {}

var _ Observer = nopObserver{}
