package mm

import (
	"testing"

	"github.com/f4os-go/corertos/internal/diag"
)

// installTestPanicHook redirects diag.Fatal to push its message onto ch
// instead of halting the process, so fatal-invariant tests can assert on
// the diagnostic without killing the test binary. Restores the previous
// hook via the returned func.
func installTestPanicHook(t *testing.T, ch chan string) func() {
	t.Helper()
	prev := diag.SetHook(func(msg string) {
		select {
		case ch <- msg:
		default:
		}
	})
	return func() { diag.SetHook(prev) }
}
