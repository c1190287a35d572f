package gasmeter

// FunctionMiddleware transforms the event stream of a single function body.
// Implementations receive events in order and write their rewritten form
// (zero or more events per input event) into sink.
type FunctionMiddleware interface {
	FeedEvent(ev Event, sink *Sink) error
}

// MiddlewareChain composes an ordered list of FunctionMiddleware into one.
// Each stage's output sink becomes the next stage's input stream, so a
// later stage observes a block boundary (or a synthesized operator) only
// if an earlier stage chose to emit one.
type MiddlewareChain struct {
	stages []FunctionMiddleware
}

// NewMiddlewareChain returns a chain that applies stages in order.
func NewMiddlewareChain(stages ...FunctionMiddleware) *MiddlewareChain {
	return &MiddlewareChain{stages: stages}
}

// Run feeds events through every stage in order and returns the final
// sink's events.
func (c *MiddlewareChain) Run(events []Event) ([]Event, error) {
	current := events
	for _, stage := range c.stages {
		sink := NewSink()
		for _, ev := range current {
			if err := stage.FeedEvent(ev, sink); err != nil {
				return nil, err
			}
		}
		current = sink.Events()
	}
	return current, nil
}
