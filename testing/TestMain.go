// Package testing forces test mode for any package that blank-imports it.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("GOTENBERG_URL") == "" {
			_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
		}
		if os.Getenv("LEDGER_TIMEZONE") == "" {
			_ = os.Setenv("LEDGER_TIMEZONE", "UTC")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets packages delegate their TestMain here.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
