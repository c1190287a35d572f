package gasmeter

// Sink is a growable, append-only buffer of Events with random-access
// back-patching. Positions are stable: once an event is pushed, its index
// never changes until Truncate removes trailing entries.
type Sink struct {
	events []Event
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Push appends e and returns the index it was written to.
func (s *Sink) Push(e Event) int {
	s.events = append(s.events, e)
	return len(s.events) - 1
}

// Len returns the number of events currently in the sink.
func (s *Sink) Len() int {
	return len(s.events)
}

// At returns the event at position i.
func (s *Sink) At(i int) Event {
	return s.events[i]
}

// Set overwrites the event at position i.
func (s *Sink) Set(i int, e Event) {
	s.events[i] = e
}

// Truncate discards every event from position n onward.
func (s *Sink) Truncate(n int) {
	s.events = s.events[:n]
}

// Events returns the sink's contents. The caller must not retain it across
// further mutation of the sink.
func (s *Sink) Events() []Event {
	return s.events
}
