package mmdrender

import "errors"

// Sentinel errors for pipeline steps. Their text is the caller-facing message.
var (
	// Browser resource errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrBrowserRestart = errors.New("browser restart failed")
	ErrTabCreate      = errors.New("tab creation failed after restart")
	ErrRendererClosed = errors.New("renderer closed")

	// Vector path errors.
	ErrNavigate    = errors.New("navigation failed")
	ErrPayloadEval = errors.New("payload evaluation failed")
	ErrEvaluate    = errors.New("evaluation failed")
	ErrRenderEmpty = errors.New("render failed")

	// Raster path errors.
	ErrCaptureNavigate = errors.New("navigation for capture failed")
	ErrCaptureWait     = errors.New("wait for capture navigation failed")
	ErrMeasure         = errors.New("viewport measurement failed")
	ErrScreenshot      = errors.New("screenshot capture failed")

	// ErrTimeout wraps a step error when the render deadline expired during that step.
	ErrTimeout = errors.New("render timed out")

	// Request validation errors.
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidScale  = errors.New("invalid scale")
	ErrTextTooLong   = errors.New("text too long")
)

// ErrorKind groups pipeline failures for diagnostics and metrics.
type ErrorKind string

// Error kinds. KindNone is reported for successful renders.
const (
	KindNone           ErrorKind = "ok"
	KindResource       ErrorKind = "resource"
	KindNavigation     ErrorKind = "navigation"
	KindEvaluation     ErrorKind = "evaluation"
	KindRenderEmpty    ErrorKind = "render_empty"
	KindCapture        ErrorKind = "capture"
	KindTimeout        ErrorKind = "timeout"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindUnknown        ErrorKind = "unknown"
)

// kindTable is checked in order; ErrTimeout comes first because a timed-out
// step carries both ErrTimeout and the step sentinel.
var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTimeout, KindTimeout},
	{ErrBrowserConnect, KindResource},
	{ErrBrowserRestart, KindResource},
	{ErrTabCreate, KindResource},
	{ErrRendererClosed, KindResource},
	{ErrNavigate, KindNavigation},
	{ErrPayloadEval, KindEvaluation},
	{ErrEvaluate, KindEvaluation},
	{ErrRenderEmpty, KindRenderEmpty},
	{ErrCaptureNavigate, KindCapture},
	{ErrCaptureWait, KindCapture},
	{ErrMeasure, KindCapture},
	{ErrScreenshot, KindCapture},
	{ErrInvalidFormat, KindInvalidRequest},
	{ErrInvalidScale, KindInvalidRequest},
	{ErrTextTooLong, KindInvalidRequest},
}

// KindOf classifies err. It uses errors.Is, so wrapped errors are recognized.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Message returns the short caller-facing message for err: the text of the
// first matching sentinel, without the underlying cause.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal error"
}
