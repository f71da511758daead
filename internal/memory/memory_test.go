package memory

import (
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	m.readAlloc = func() uint64 { return *alloc }
	return m
}

func TestMonitorThresholds(t *testing.T) {
	alloc := uint64(10)
	m := newTestMonitor(100, &alloc)

	m.checkMemory()
	if m.ShouldThrottle() || m.IsPaused() {
		t.Fatal("Expected no backpressure at 10%")
	}

	alloc = 75
	m.checkMemory()
	if !m.ShouldThrottle() {
		t.Error("Expected throttling at 75%")
	}
	if m.IsPaused() {
		t.Error("Did not expect pause at 75%")
	}

	alloc = 90
	m.checkMemory()
	if !m.IsPaused() {
		t.Error("Expected pause at 90%")
	}

	// Between the marks the paused state sticks.
	alloc = 80
	m.checkMemory()
	if !m.IsPaused() {
		t.Error("Expected pause to hold between high and critical marks")
	}

	alloc = 50
	m.checkMemory()
	if m.IsPaused() {
		t.Error("Expected resume below high water mark")
	}
	if got := m.GetUsage(); got != 0.5 {
		t.Errorf("GetUsage() = %v, want 0.5", got)
	}
}

func TestWaitIfPausedReleasesOnRecovery(t *testing.T) {
	alloc := uint64(95)
	m := newTestMonitor(100, &alloc)
	m.checkMemory()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	alloc = 10
	m.checkMemory()

	select {
	case ok := <-done:
		if !ok {
			t.Error("Expected WaitIfPaused to return true after recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after recovery")
	}
}

func TestWaitIfPausedReleasesOnStop(t *testing.T) {
	alloc := uint64(95)
	m := newTestMonitor(100, &alloc)
	m.checkMemory()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	m.Stop()
	m.Stop() // idempotent

	select {
	case ok := <-done:
		if ok {
			t.Error("Expected WaitIfPaused to return false after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Stop")
	}
}

func TestNoLimitNeverThrottles(t *testing.T) {
	m := &Monitor{stopChan: make(chan struct{}), pauseChan: make(chan struct{})}
	if m.ShouldThrottle() {
		t.Error("Expected no throttling without a limit")
	}
	if m.GetUsage() != 0 {
		t.Error("Expected zero usage without a limit")
	}
	if !m.WaitIfPaused() {
		t.Error("Expected WaitIfPaused to pass through without a limit")
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", DefaultMemoryRatio},
		{"0.5", 0.5},
		{"1", 1},
		{"0", DefaultMemoryRatio},
		{"1.5", DefaultMemoryRatio},
		{"abc", DefaultMemoryRatio},
	}
	for _, tt := range tests {
		if got := parseRatio(tt.in); got != tt.want {
			t.Errorf("parseRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigureFromEnvWithoutVariables(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("Expected Configured to be false when no env vars set")
	}
	if result.Source != "none" {
		t.Errorf("Expected Source to be 'none', got %q", result.Source)
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	result := ConfigureFromEnv()
	if result.Configured || result.Source != "none" {
		t.Errorf("Expected unconfigured result for invalid MEMORY_LIMIT, got %+v", result)
	}
}
