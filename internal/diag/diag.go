// Package diag implements the kernel's single non-recoverable failure
// path: invariant violations (corrupt allocator headers, release by a
// non-holder, deadlock cycles, uninitialized device access) are not
// representable as error returns, so they go through a panic hook instead.
package diag

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Hook is called with a formatted diagnostic message before the process
// halts. The default hook logs and calls os.Exit; tests install a hook
// that instead records the message and panics, so assertions can use
// recover() without actually killing the test binary.
type Hook func(msg string)

var (
	mu         sync.Mutex
	activeHook Hook = defaultHook
)

// SetHook installs a replacement panic hook, returning the previous one
// so callers can restore it (tests typically defer the restore).
func SetHook(h Hook) Hook {
	mu.Lock()
	defer mu.Unlock()
	prev := activeHook
	activeHook = h
	return prev
}

func defaultHook(msg string) {
	log.New(os.Stderr, "[FATAL] ", log.LstdFlags).Println(msg)
	os.Exit(1)
}

// Fatal formats a diagnostic message and invokes the active panic hook.
// Per spec this never returns under the default hook.
func Fatal(format string, args ...any) {
	mu.Lock()
	h := activeHook
	mu.Unlock()
	h(fmt.Sprintf(format, args...))
}

// PanicHook is the test-friendly hook: it panics with the message instead
// of exiting, so `recover()` in a deferred function can observe it.
func PanicHook(msg string) {
	panic(msg)
}
