//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop a foreground server.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
