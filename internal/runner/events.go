package runner

import "github.com/loadgic/loadgic/internal/languages"

// Event is one run notification. The concrete types are MetricEvent,
// StdoutEvent, StderrEvent and DoneEvent.
type Event interface {
	isEvent()
}

// MetricEvent is emitted for every parsed probe line, live from stderr or
// from the trace file after the process exits.
type MetricEvent struct {
	Metric languages.Metric
}

// StdoutEvent carries a raw stdout chunk.
type StdoutEvent struct {
	Data string
}

// StderrEvent carries stderr output with probe lines removed, or the spawn
// error text when the process could not start.
type StderrEvent struct {
	Data string
}

// DoneEvent is always the last event of a run that reached the spawn step.
type DoneEvent struct {
	ExitCode int
	Summary  Summary
	Metrics  []languages.Metric
}

func (MetricEvent) isEvent() {}
func (StdoutEvent) isEvent() {}
func (StderrEvent) isEvent() {}
func (DoneEvent) isEvent()   {}

// Observer receives run events. Calls are serialized by the runner.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// ChannelObserver forwards every event to C. The runner blocks while C is
// full, so the consumer must keep draining until it sees a DoneEvent.
type ChannelObserver struct {
	C chan Event
}

// NewChannelObserver returns an observer with a buffer of size events.
func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{C: make(chan Event, size)}
}

func (o *ChannelObserver) OnEvent(e Event) { o.C <- e }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
