package sync2

import (
	"testing"

	"github.com/f4os-go/corertos/internal/diag"
)

func installPanicHook(t *testing.T, ch chan string) func() {
	t.Helper()
	prev := diag.SetHook(func(msg string) {
		select {
		case ch <- msg:
		default:
		}
	})
	return func() { diag.SetHook(prev) }
}
