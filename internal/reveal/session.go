// Package reveal plays text back progressively, one unit per tick.
//
// A Slot owns at most one Session. Starting a new session supersedes the
// previous one, and ticks are addressed by session id, so a tick that was
// already queued for a superseded session is ignored. All Slot methods must
// be called from the same goroutine (the UI loop); the package does no
// locking of its own.
package reveal

import "time"

// State of a Session.
type State int

const (
	Idle State = iota
	Running
	Finished
	Canceled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Options configures a reveal session.
type Options struct {
	Granularity Granularity
	Interval    time.Duration
	// Stream false reveals everything at once.
	Stream bool
}

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 35 * time.Millisecond

// Session is one playback of a target text.
type Session struct {
	id       uint64
	target   string
	units    []string
	count    int
	prefix   string
	gran     Granularity
	interval time.Duration
	state    State
}

func newSession(id uint64, text string, opts Options) *Session {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Session{
		id:       id,
		target:   text,
		units:    Units(text, opts.Granularity),
		gran:     opts.Granularity,
		interval: interval,
		state:    Idle,
	}
}

func (s *Session) ID() uint64              { return s.id }
func (s *Session) Target() string          { return s.target }
func (s *Session) Prefix() string          { return s.prefix }
func (s *Session) State() State            { return s.state }
func (s *Session) Interval() time.Duration { return s.interval }

// Revealing reports whether the session is still advancing.
func (s *Session) Revealing() bool { return s.state == Running }

// Done reports whether the session reached a terminal state.
func (s *Session) Done() bool { return s.state == Finished || s.state == Canceled }

// Progress returns revealed and total unit counts.
func (s *Session) Progress() (n, total int) { return s.count, len(s.units) }

// Display is what a renderer should show: the prefix while revealing, the
// untouched target once finished so that line breaks survive word mode.
func (s *Session) Display() string {
	if s.state == Finished {
		return s.target
	}
	return s.prefix
}

func (s *Session) begin(stream bool) {
	if s.state != Idle {
		return
	}
	if !stream || len(s.units) == 0 {
		s.count = len(s.units)
		s.prefix = Join(s.units, s.gran)
		s.state = Finished
		return
	}
	s.state = Running
}

// advance reveals one more unit. It reports whether the prefix changed.
func (s *Session) advance() bool {
	if s.state != Running {
		return false
	}
	if s.count > 0 {
		s.prefix += s.gran.sep()
	}
	s.prefix += s.units[s.count]
	s.count++
	if s.count >= len(s.units) {
		s.state = Finished
	}
	return true
}

func (s *Session) cancel() {
	if s.state == Idle || s.state == Running {
		s.state = Canceled
	}
}
