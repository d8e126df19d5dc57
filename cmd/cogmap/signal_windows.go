//go:build windows

package main

import "os"

// shutdownSignals stop a foreground server. Windows has no SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
