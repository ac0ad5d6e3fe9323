// Package testing switches the process into test mode when imported by a
// test binary, so no package under test reaches real infrastructure.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// Kept in sync with app.TestModeEnv; importing app here would cycle.
const testModeEnv = "ROLEDASH_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("USERS_SOURCE_URL") == "" {
			_ = os.Setenv("USERS_SOURCE_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets packages delegate their own TestMain here.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
