package sysinfo

import (
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"
)

// fastfetchTimeout bounds one banner refresh; the command normally finishes
// in well under a second.
const fastfetchTimeout = 10 * time.Second

// FastfetchCache holds the latest fastfetch output. The command runs only in
// the scheduled refresh job; readers get the last completed capture.
type FastfetchCache struct {
	out atomic.Pointer[[]byte]

	// run is injectable for tests.
	run func(ctx context.Context) ([]byte, error)
}

// NewFastfetchCache creates an empty cache.
func NewFastfetchCache() *FastfetchCache {
	return &FastfetchCache{run: runFastfetch}
}

// Refresh executes fastfetch and stores its output. A failed run keeps the
// previous capture.
func (f *FastfetchCache) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fastfetchTimeout)
	defer cancel()

	out, err := f.run(ctx)
	if err != nil {
		return fmt.Errorf("sysinfo: fastfetch: %w", err)
	}
	f.out.Store(&out)
	return nil
}

// Get returns the latest capture, or false when none has completed yet.
func (f *FastfetchCache) Get() ([]byte, bool) {
	p := f.out.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

func runFastfetch(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "fastfetch", "--pipe").Output()
}
