// Package config collects the tunables a Kernel is built from.
package config

import (
	"time"

	"github.com/f4os-go/corertos/internal/constants"
)

// Config holds every configuration knob named in the kernel's external
// interface: arena sizing and allocator orders, resource table size, and
// tick period.
type Config struct {
	// KernelArenaSize and UserArenaSize are the byte sizes of the two
	// mmap'd backing regions.
	KernelArenaSize int
	UserArenaSize   int

	// MinOrder and MaxOrder bound block orders for both arenas.
	MinOrder uint8
	MaxOrder uint8

	// ResourceTableSize is the per-task handle table capacity.
	ResourceTableSize int

	// TickPeriod drives the arch port's timer.
	TickPeriod time.Duration
}

// Default returns the configuration used when a caller does not override
// any tunables, matching the constants a bare-metal boot would compile in.
func Default() Config {
	return Config{
		KernelArenaSize:   constants.DefaultKernelArenaSize,
		UserArenaSize:     constants.DefaultUserArenaSize,
		MinOrder:          constants.MMMinOrder,
		MaxOrder:          constants.MMMaxOrder,
		ResourceTableSize: constants.ResourceTableSize,
		TickPeriod:        constants.DefaultTickPeriod,
	}
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithArenaSizes overrides both arena sizes.
func WithArenaSizes(kernel, user int) Option {
	return func(c *Config) {
		c.KernelArenaSize = kernel
		c.UserArenaSize = user
	}
}

// WithOrders overrides the min/max block order bounds.
func WithOrders(min, max uint8) Option {
	return func(c *Config) {
		c.MinOrder = min
		c.MaxOrder = max
	}
}

// WithResourceTableSize overrides the per-task handle table capacity.
func WithResourceTableSize(n int) Option {
	return func(c *Config) {
		c.ResourceTableSize = n
	}
}

// WithTickPeriod overrides the arch port's timer interval.
func WithTickPeriod(d time.Duration) Option {
	return func(c *Config) {
		c.TickPeriod = d
	}
}

// New builds a Config from Default plus any Options.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
