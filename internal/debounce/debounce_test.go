package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

// manualTimers replaces afterFunc so scheduled callbacks only run when the
// test invokes them.
func manualTimers(t *testing.T) *[]func() {
	t.Helper()
	orig := afterFunc
	t.Cleanup(func() { afterFunc = orig })

	var callbacks []func()
	afterFunc = func(_ time.Duration, f func()) *time.Timer {
		callbacks = append(callbacks, f)
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		return timer
	}
	return &callbacks
}

func TestDebouncerScheduledCallbacks(t *testing.T) {
	tests := []struct {
		name      string
		act       func(d *Debouncer)
		scheduled int
		want      int32
	}{
		{
			name:      "only latest trigger fires",
			act:       func(d *Debouncer) { d.Trigger(); d.Trigger() },
			scheduled: 2,
			want:      1,
		},
		{
			name:      "stop drops pending",
			act:       func(d *Debouncer) { d.Trigger(); d.Stop() },
			scheduled: 1,
			want:      0,
		},
		{
			name:      "trigger after stop fires",
			act:       func(d *Debouncer) { d.Trigger(); d.Stop(); d.Trigger() },
			scheduled: 2,
			want:      1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callbacks := manualTimers(t)
			var called atomic.Int32
			d := New(time.Second, func() { called.Add(1) })

			tt.act(d)
			if len(*callbacks) != tt.scheduled {
				t.Fatalf("scheduled %d callbacks, want %d", len(*callbacks), tt.scheduled)
			}
			for _, cb := range *callbacks {
				cb()
			}
			if got := called.Load(); got != tt.want {
				t.Fatalf("got %d calls, want %d", got, tt.want)
			}
		})
	}
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	var count atomic.Int32
	done := make(chan struct{})
	d := New(10*time.Millisecond, func() {
		if count.Add(1) == 1 {
			close(done)
		}
	})
	for range 5 {
		d.Trigger()
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("expected one invocation, got %d", got)
	}
}

func TestDebouncerStopBeforeDeadline(t *testing.T) {
	var count atomic.Int32
	d := New(20*time.Millisecond, func() { count.Add(1) })
	d.Trigger()
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("expected no invocations after stop, got %d", got)
	}
}

func TestDebouncerZeroDelayRunsSynchronously(t *testing.T) {
	var count atomic.Int32
	d := New(0, func() { count.Add(1) })
	d.Trigger()
	d.Trigger()
	if got := count.Load(); got != 2 {
		t.Fatalf("expected two synchronous invocations, got %d", got)
	}
	if d.Pending() {
		t.Fatal("zero delay debouncer should never have a pending call")
	}
}

func TestDebouncerPending(t *testing.T) {
	callbacks := manualTimers(t)
	d := New(time.Second, func() {})
	if d.Pending() {
		t.Fatal("new debouncer should not be pending")
	}
	d.Trigger()
	if !d.Pending() {
		t.Fatal("expected pending call after Trigger")
	}
	(*callbacks)[0]()
	if d.Pending() {
		t.Fatal("expected no pending call after the callback ran")
	}
}

func TestEnsure(t *testing.T) {
	var called atomic.Int32
	var d *Debouncer
	first := Ensure(&d, 0, func() { called.Add(1) })
	if first == nil || first != d {
		t.Fatal("Ensure should initialize and store the debouncer")
	}
	second := Ensure(&d, 0, func() { called.Add(10) })
	if second != first {
		t.Fatal("Ensure should reuse the stored debouncer")
	}
	second.Trigger()
	if got := called.Load(); got != 1 {
		t.Fatalf("expected original handler once, got %d", got)
	}
}
