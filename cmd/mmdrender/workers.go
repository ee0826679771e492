package main

import (
	"runtime"

	"github.com/alnah/go-mmdrender/internal/config"
)

// Auto worker bounds. Each worker holds one tab of the shared browser.
const (
	minAutoWorkers = 1
	maxAutoWorkers = 8
)

// resolveWorkers determines batch concurrency.
// Priority: explicit value > GOMAXPROCS-based calculation.
func resolveWorkers(n int) int {
	if n > 0 {
		if n > config.MaxWorkers {
			return config.MaxWorkers
		}
		return n
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers
	n = runtime.GOMAXPROCS(0) / 2
	if n < minAutoWorkers {
		return minAutoWorkers
	}
	if n > maxAutoWorkers {
		return maxAutoWorkers
	}
	return n
}
