// Command corertos-demo boots a Kernel and runs the priority-preemption
// scenario end to end: a low-priority task spins while a high-priority
// aperiodic task is created underneath it, and a housekeeping task that
// first wakes after a short period then reports metrics.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/f4os-go/corertos"
	"github.com/f4os-go/corertos/internal/config"
	"github.com/f4os-go/corertos/internal/logging"
	"github.com/f4os-go/corertos/internal/sched"
)

func main() {
	var (
		arenaStr = flag.String("arena", "1M", "Size of each arena (kernel and user); must equal 2^MaxOrder, which is 1M by default")
		verbose  = flag.Bool("v", false, "Verbose output")
		ticks    = flag.Duration("tick", time.Millisecond, "Scheduler tick period")
	)
	flag.Parse()

	arenaSize, err := parseSize(*arenaStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid arena size %q: %v\n", *arenaStr, err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := config.New(
		config.WithArenaSizes(int(arenaSize), int(arenaSize)),
		config.WithTickPeriod(*ticks),
	)
	k, err := corertos.NewKernel(cfg)
	if err != nil {
		logger.Error("failed to build kernel", "error", err)
		os.Exit(1)
	}
	defer k.Stop()

	logger.Info("kernel built", "arena_bytes", arenaSize, "tick_period", ticks.String())

	k.StartSched()
	logger.Info("scheduler started")

	runPreemptionScenario(k, logger)
	runPeriodicHousekeeping(k, logger)

	fmt.Println("corertos demo running, press Ctrl+C to stop...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	snap := k.Metrics().Snapshot()
	logger.Info("final metrics",
		"context_switches", snap.ContextSwitches,
		"tasks_created", snap.TasksCreated,
		"tasks_exited", snap.TasksExited,
		"mutex_contentions", snap.MutexContentions)
}

// runPreemptionScenario spins up a low-priority task that yields in a
// tight loop, then creates a high-priority aperiodic task underneath it.
// The high-priority task becomes ready immediately, so the low-priority
// task's very next Yield hands the CPU to it without waiting on a tick.
func runPreemptionScenario(k *corertos.Kernel, logger *logging.Logger) {
	highRan := make(chan struct{})

	low := k.NewTask(func(self *sched.Task) {
		log := logger.WithTask(self.ID()).WithOp("low_priority_spin")
		for i := 0; i < 1000; i++ {
			select {
			case <-highRan:
				log.Info("observed high-priority task run, stopping spin", "iterations", i)
				return
			default:
			}
			self.Yield()
		}
		log.Warn("high-priority task never observed before spin budget exhausted")
	}, 1, 0)

	k.NewTask(func(self *sched.Task) {
		logger.WithTask(self.ID()).WithOp("high_priority_burst").Info("running")
		close(highRan)
	}, 10, 0)

	select {
	case <-low.Done():
	case <-time.After(time.Second):
		logger.Warn("low-priority task did not exit within the demo's timeout")
	}
}

// runPeriodicHousekeeping installs a periodic task that the wakeup wheel
// first wakes after 5 ticks, independent of the aperiodic preemption path
// above. The scheduler does not put it back to sleep after that: its loop
// logs a metrics snapshot each time it returns from Yield, not once per
// period.
func runPeriodicHousekeeping(k *corertos.Kernel, logger *logging.Logger) {
	k.NewTask(func(self *sched.Task) {
		log := logger.WithTask(self.ID()).WithOp("housekeeping")
		for {
			snap := k.Metrics().Snapshot()
			log.Debug("metrics snapshot",
				"malloc_ops", snap.MallocOps,
				"context_switches", snap.ContextSwitches)
			self.Yield()
		}
	}, 2, 5)
}

// parseSize parses a size string like "64M", "1G", "512K".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
