package forkline

// Event types emitted while a turn is running.
const (
	EventStatus     = "status"
	EventToken      = "token"
	EventNodeStart  = "node_start"
	EventNodeUpdate = "node_update"
	EventTurnDone   = "turn_done"
)

// Event is one streaming update emitted during turn execution. Events from
// the same node arrive in emission order; events across nodes arrive in
// node-execution order because node execution is strictly sequential.
type Event struct {
	Type    string         `json:"type"`
	Node    string         `json:"node,omitempty"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// EventSink receives streaming events. Sinks are passed into nodes as an
// explicit output handle; there is no ambient stream writer.
type EventSink interface {
	Emit(event Event)
}

// NullSink discards all events.
type NullSink struct{}

func (NullSink) Emit(Event) {}

// ChannelSink forwards events onto a channel. Emit drops the event if the
// channel is full rather than blocking node execution.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(event Event) {
	select {
	case s.ch <- event:
	default:
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close closes the underlying channel. Call only after the turn returned.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// nodeSink stamps the emitting node's name onto every event before
// forwarding, so callers can attribute events without trusting nodes to
// fill the field in.
type nodeSink struct {
	node string
	next EventSink
}

func (s nodeSink) Emit(event Event) {
	if event.Node == "" {
		event.Node = s.node
	}
	s.next.Emit(event)
}
