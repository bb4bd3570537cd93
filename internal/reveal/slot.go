package reveal

// Slot is one place on screen that shows revealed text.
type Slot struct {
	current *Session
	lastID  uint64
	publish func(prefix string)
}

// NewSlot returns a slot that reports every prefix change to publish.
// publish may be nil.
func NewSlot(publish func(prefix string)) *Slot {
	return &Slot{publish: publish}
}

// Start supersedes the current session with a new one over text.
// A streaming session starts Running with an empty prefix; otherwise the
// whole text is published and the session is Finished on return.
func (sl *Slot) Start(text string, opts Options) *Session {
	sl.Cancel()
	sl.lastID++
	s := newSession(sl.lastID, text, opts)
	sl.current = s
	s.begin(opts.Stream)
	sl.emit(s.prefix)
	return s
}

// Tick advances the session with the given id. Ticks for any session other
// than the current running one are no-ops. Tick reports whether the caller
// should schedule another tick.
func (sl *Slot) Tick(id uint64) bool {
	s := sl.current
	if s == nil || s.id != id {
		return false
	}
	if !s.advance() {
		return false
	}
	sl.emit(s.prefix)
	return s.Revealing()
}

// Cancel stops the current session. Its prefix stays where it was.
func (sl *Slot) Cancel() {
	if sl.current != nil {
		sl.current.cancel()
	}
}

// Current returns the active session, or nil before the first Start.
func (sl *Slot) Current() *Session { return sl.current }

func (sl *Slot) emit(prefix string) {
	if sl.publish != nil {
		sl.publish(prefix)
	}
}
