//go:build windows

package main

import "os"

// shutdownSignals stop the server gracefully and abort in-flight renders.
// Windows only delivers os.Interrupt.
var shutdownSignals = []os.Signal{os.Interrupt}
