// Package testing is imported for its side effects by test packages. It switches the
// binaries into test mode and pins the local zone so business dates are stable.
package testing

import (
	"os"
	"time"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

func init() {
	if os.Getenv(testModeEnv) == "" {
		_ = os.Setenv(testModeEnv, "1")
	}
	time.Local = time.UTC
}
