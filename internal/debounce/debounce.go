package debounce

import (
	"sync"
	"time"
)

var afterFunc = time.AfterFunc

// Debouncer collapses bursts of Trigger calls into one call of fn, delay
// after the last trigger. A non-positive delay runs fn synchronously.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	seq   uint64
	fn    func()
}

func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Ensure returns *d, allocating it with delay and fn first when it is nil.
// The caller serializes access to d.
func Ensure(d **Debouncer, delay time.Duration, fn func()) *Debouncer {
	if *d == nil {
		*d = New(delay, fn)
	}
	return *d
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	if d.delay <= 0 {
		fn := d.fn
		d.mu.Unlock()
		fn()
		return
	}
	seq := d.seq
	d.timer = afterFunc(d.delay, func() { d.fire(seq) })
	d.mu.Unlock()
}

// fire ignores callbacks of timers that were superseded or stopped after
// they had already been scheduled.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	fn := d.fn
	d.mu.Unlock()
	fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}
