// Package testing switches the process into test mode when imported by test binaries.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "BACKOFFICE_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
