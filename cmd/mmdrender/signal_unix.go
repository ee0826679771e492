//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop the server gracefully and abort in-flight renders.
// SIGHUP is included so a closed terminal does not leave Chrome behind.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
