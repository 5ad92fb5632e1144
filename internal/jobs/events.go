package jobs

import "context"

// EventKind identifies what an Event carries.
type EventKind string

const (
	// EventProgress carries Progress (0-100).
	EventProgress EventKind = "progress"
	// EventStatus carries a human-readable Message and the new State.
	EventStatus EventKind = "status"
	// EventFragment carries one streamed Text fragment.
	EventFragment EventKind = "fragment"
	// EventResult carries the complete generated Text.
	EventResult EventKind = "result_ready"
	// EventError carries Err; the job is in StateError.
	EventError EventKind = "error"
	// EventComplete carries the saved result Path.
	EventComplete EventKind = "complete"
)

// Event is a notification from a running job.
type Event struct {
	JobID    string
	Kind     EventKind
	State    State
	Progress int
	Message  string
	Text     string
	Path     string
	Err      *Error
}

// Terminal reports whether no further events follow for the job.
func (e Event) Terminal() bool {
	return e.Kind == EventError || e.Kind == EventComplete
}

// Observer receives job events on the job's goroutine. Implementations must
// not block for long.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver forwards every event to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(e)
		}
	}
}

// ChannelObserver sends events on C. A send to a full buffer blocks until
// the event is received or the context given to NewChannelObserver is done,
// in which case the event is dropped.
type ChannelObserver struct {
	C   chan Event
	ctx context.Context
}

// NewChannelObserver returns a ChannelObserver with a buffer of size.
func NewChannelObserver(ctx context.Context, size int) *ChannelObserver {
	return &ChannelObserver{C: make(chan Event, size), ctx: ctx}
}

func (o *ChannelObserver) OnEvent(e Event) {
	select {
	case o.C <- e:
		return
	default:
	}
	select {
	case o.C <- e:
	case <-o.ctx.Done():
	}
}

var discard = ObserverFunc(func(Event) {})
