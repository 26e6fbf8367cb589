package app

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether processes should skip connecting to infrastructure.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	RefreshTestMode()
	return *testMode.Load()
}

// RefreshTestMode re-reads ODYSSEY_TEST_MODE.
func RefreshTestMode() {
	v := os.Getenv(testModeEnv) == "1"
	testMode.Store(&v)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
