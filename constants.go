package corertos

import "github.com/f4os-go/corertos/internal/constants"

// Re-export the tunables callers most commonly need without reaching
// into internal/constants directly.
const (
	DefaultKernelArenaSize = constants.DefaultKernelArenaSize
	DefaultUserArenaSize   = constants.DefaultUserArenaSize
	DefaultMinOrder        = constants.MMMinOrder
	DefaultMaxOrder        = constants.MMMaxOrder
	DefaultResourceTableSize = constants.ResourceTableSize
	DefaultTickPeriod      = constants.DefaultTickPeriod
	IdleTaskPriority       = constants.IdleTaskPriority
)
