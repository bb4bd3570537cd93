package reveal

import "time"

// Scheduler runs fn once after d. The returned stop function prevents fn
// from running if it has not started yet.
type Scheduler interface {
	After(d time.Duration, fn func()) (stop func())
}

// Clock schedules on the wall clock.
type Clock struct{}

func (Clock) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Driver ticks a Slot from a Scheduler, for hosts that work with callbacks
// rather than messages.
type Driver struct {
	slot  *Slot
	sched Scheduler
	post  func(func())
	stop  func()
}

// NewDriver binds slot to sched. Timer callbacks are handed to post so they
// run on the goroutine that owns slot; a nil post calls them directly.
func NewDriver(slot *Slot, sched Scheduler, post func(func())) *Driver {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Driver{slot: slot, sched: sched, post: post}
}

// Slot returns the driven slot.
func (d *Driver) Slot() *Slot { return d.slot }

// Start supersedes the running session and schedules ticks for the new one.
func (d *Driver) Start(text string, opts Options) *Session {
	d.stopTimer()
	s := d.slot.Start(text, opts)
	if s.Revealing() {
		d.schedule(s.ID(), s.Interval())
	}
	return s
}

// Cancel stops the pending tick and cancels the current session.
func (d *Driver) Cancel() {
	d.stopTimer()
	d.slot.Cancel()
}

func (d *Driver) schedule(id uint64, interval time.Duration) {
	d.stop = d.sched.After(interval, func() {
		d.post(func() {
			// Slot.Tick rejects ids that have been superseded meanwhile.
			if d.slot.Tick(id) {
				d.schedule(id, interval)
			}
		})
	})
}

func (d *Driver) stopTimer() {
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
}
