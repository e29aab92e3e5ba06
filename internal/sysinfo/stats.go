// Package sysinfo tracks host health for the status widget: a rolling hour
// of CPU/memory samples plus a cached fastfetch banner.
package sysinfo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HistoryCapacity holds one hour of one-second samples.
const HistoryCapacity = 3600

// Stat is one CPU/memory utilization sample, percentages in [0, 100].
type Stat struct {
	CPU float64
	Mem float64
	At  time.Time
}

// StatsHistory is a fixed-capacity ring of samples. Push evicts the oldest
// sample once full.
type StatsHistory struct {
	mu    sync.RWMutex
	ring  []Stat
	head  int // next write position
	count int
}

// NewStatsHistory creates an empty history with the given capacity
// (HistoryCapacity when cap <= 0).
func NewStatsHistory(capacity int) *StatsHistory {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &StatsHistory{ring: make([]Stat, capacity)}
}

// Push appends a sample, evicting the oldest when the ring is full.
func (h *StatsHistory) Push(s Stat) {
	h.mu.Lock()
	h.ring[h.head] = s
	h.head = (h.head + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
	h.mu.Unlock()
}

// Latest returns the most recent sample.
func (h *StatsHistory) Latest() (Stat, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return Stat{}, false
	}
	return h.ring[(h.head-1+len(h.ring))%len(h.ring)], true
}

// Snapshot returns the samples oldest-first.
func (h *StatsHistory) Snapshot() []Stat {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Stat, h.count)
	start := (h.head - h.count + len(h.ring)) % len(h.ring)
	for i := 0; i < h.count; i++ {
		out[i] = h.ring[(start+i)%len(h.ring)]
	}
	return out
}

// Len returns the number of stored samples.
func (h *StatsHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Sampler probes host utilization. probe is injectable for tests.
type Sampler struct {
	now   func() time.Time
	probe func(ctx context.Context) (cpuPct, memPct float64, err error)
}

// NewSampler creates a sampler backed by the host probes.
func NewSampler() *Sampler {
	return &Sampler{now: time.Now, probe: hostProbe}
}

// Sample takes one utilization reading.
func (s *Sampler) Sample(ctx context.Context) (Stat, error) {
	cpuPct, memPct, err := s.probe(ctx)
	if err != nil {
		return Stat{}, err
	}
	return Stat{CPU: cpuPct, Mem: memPct, At: s.now()}, nil
}

func hostProbe(ctx context.Context) (float64, float64, error) {
	// Interval 0 measures against the previous call; the first reading after
	// start is over an undefined window and may read 0.
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("sysinfo: cpu probe: %w", err)
	}
	cpuPct := 0.0
	if len(cpus) > 0 {
		cpuPct = cpus[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sysinfo: memory probe: %w", err)
	}
	return cpuPct, vm.UsedPercent, nil
}
