package app

import (
	"os"
	"sync/atomic"
)

// TestModeEnv is set to "1" by the testing package; binaries exit before touching
// Postgres or Redis when it is on.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether TestModeEnv is on. The environment is read once.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode rereads TestModeEnv and returns the new value.
func RefreshTestMode() bool {
	on := os.Getenv(TestModeEnv) == "1"
	testMode.Store(&on)
	return on
}
