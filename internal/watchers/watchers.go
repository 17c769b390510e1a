// Package watchers feeds the live state snapshot: periodic system
// metrics, disc mount detection, and service liveness. Each watcher is
// a poll loop that writes through the state store's merge API, so a
// slow or failing probe never blocks readers.
package watchers

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

// Config controls poll intervals and the disc mount root.
type Config struct {
	SystemInterval time.Duration
	DiscInterval   time.Duration
	DiscMountRoot  string
}

// Defaults fills zero fields with the stock intervals.
func (c *Config) defaults() {
	if c.SystemInterval <= 0 {
		c.SystemInterval = 5 * time.Second
	}
	if c.DiscInterval <= 0 {
		c.DiscInterval = 7 * time.Second
	}
	if c.DiscMountRoot == "" {
		c.DiscMountRoot = defaultMountRoot()
	}
}

// defaultMountRoot is where the OS auto-mounts removable media.
func defaultMountRoot() string {
	if runtime.GOOS == "darwin" {
		return "/Volumes"
	}
	return "/media"
}

// Runner owns the watcher goroutines.
type Runner struct {
	cfg    Config
	store  *state.Store
	bus    *events.Bus
	logger *slog.Logger

	wg sync.WaitGroup
}

// New creates a runner. The bus may be nil.
func New(cfg Config, store *state.Store, bus *events.Bus, logger *slog.Logger) *Runner {
	cfg.defaults()
	return &Runner{cfg: cfg, store: store, bus: bus, logger: logger}
}

// Start launches the watcher loops. They stop when ctx is cancelled;
// Wait blocks until they have all returned.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(3)
	go func() {
		defer r.wg.Done()
		r.systemLoop(ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.discLoop(ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.serviceLoop(ctx)
	}()
}

// Wait blocks until all watcher loops have exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// netSample is one reading of the cumulative network counters, used to
// derive per-second rates between polls.
type netSample struct {
	sent, recv uint64
	at         time.Time
}

func (r *Runner) systemLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SystemInterval)
	defer ticker.Stop()

	var last *netSample
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = r.sampleSystem(ctx, last)
		}
	}
}

// sampleSystem reads one round of metrics and merges them into the
// snapshot. Each probe fails independently; a probe error skips that
// field and leaves the previous value in place.
func (r *Runner) sampleSystem(ctx context.Context, last *netSample) *netSample {
	patch := &state.SystemPatch{}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		patch.CPUUsage = state.Float(pcts[0] / 100)
	} else if err != nil {
		r.logger.Debug("cpu probe failed", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		patch.RAMUsage = state.Float(vm.UsedPercent / 100)
	} else {
		r.logger.Debug("memory probe failed", "error", err)
	}

	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		patch.DiskFreeGB = state.Float(toGB(du.Free))
		patch.DiskUsedGB = state.Float(toGB(du.Used))
		patch.DiskTotalGB = state.Float(toGB(du.Total))
	} else {
		r.logger.Debug("disk probe failed", "error", err)
	}

	if boot, err := host.BootTimeWithContext(ctx); err == nil {
		up := time.Now().Unix() - int64(boot)
		patch.UptimeSeconds = state.Int64(up)
	}

	next := last
	if counters, err := gopsnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		now := time.Now()
		cur := &netSample{sent: counters[0].BytesSent, recv: counters[0].BytesRecv, at: now}
		if last != nil {
			elapsed := now.Sub(last.at).Seconds()
			if elapsed > 0 {
				patch.NetworkSentMBps = state.Float(rateMBps(cur.sent, last.sent, elapsed))
				patch.NetworkRecvMBps = state.Float(rateMBps(cur.recv, last.recv, elapsed))
			}
		}
		next = cur
	} else if err != nil {
		r.logger.Debug("network probe failed", "error", err)
	}

	r.store.Update(state.Partial{System: patch})
	return next
}

func (r *Runner) serviceLoop(ctx context.Context) {
	// Service liveness changes rarely; poll at a multiple of the
	// system interval.
	ticker := time.NewTicker(2 * r.cfg.SystemInterval)
	defer ticker.Stop()

	r.sampleServices(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleServices(ctx)
		}
	}
}

// sampleServices scans the process table for the services the
// assistant cares about and merges liveness bits.
func (r *Runner) sampleServices(ctx context.Context) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		r.logger.Debug("process scan failed", "error", err)
		return
	}

	var plex, ollama bool
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "plex") {
			plex = true
		}
		if strings.Contains(lower, "ollama") {
			ollama = true
		}
		if plex && ollama {
			break
		}
	}

	r.store.Update(state.Partial{Runtime: &state.RuntimePatch{
		PlexRunning:   state.Bool(plex),
		OllamaRunning: state.Bool(ollama),
	}})
}

func toGB(b uint64) float64 {
	return float64(b) / (1 << 30)
}

func rateMBps(cur, prev uint64, seconds float64) float64 {
	if cur < prev { // counter reset
		return 0
	}
	return float64(cur-prev) / (1 << 20) / seconds
}
