package resource

import "github.com/f4os-go/corertos/internal/diag"

// installPanicHook swaps in a hook that panics with the diagnostic
// message, so a deferred recover() in the caller can observe a fatal
// invariant violation without killing the test binary.
func installPanicHook() func() {
	prev := diag.SetHook(diag.PanicHook)
	return func() { diag.SetHook(prev) }
}
