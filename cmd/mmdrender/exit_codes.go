package main

import (
	"errors"
	"os"

	mmdrender "github.com/alnah/go-mmdrender"
	"github.com/alnah/go-mmdrender/client"
	"github.com/alnah/go-mmdrender/internal/assets"
	"github.com/alnah/go-mmdrender/internal/config"
)

// Exit codes for the mmdrender CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Success, including a diagram that failed to render
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // Input not found, output not writable
	ExitBrowser = 4 // Chrome or Mermaid library unavailable
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser and payload errors (exit 4)
	if errors.Is(err, mmdrender.ErrBrowserConnect) ||
		errors.Is(err, mmdrender.ErrBrowserRestart) ||
		errors.Is(err, mmdrender.ErrTabCreate) ||
		errors.Is(err, assets.ErrPayloadNotFound) ||
		errors.Is(err, assets.ErrDownload) {
		return ExitBrowser
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidTimeout) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidBatch) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, client.ErrInvalidBaseURL) ||
		errors.Is(err, assets.ErrInvalidBasePath) {
		return ExitUsage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	return ExitGeneral
}
