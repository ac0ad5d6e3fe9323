package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv is set by the testing package before any test binary runs.
const TestModeEnv = "ROLEDASH_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether binaries should skip runtime side effects
// such as dialing Redis or binding a port.
func InTestMode() bool {
	return testMode()
}
