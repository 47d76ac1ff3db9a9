package events

// EventKind represents the type of domain event produced by the API layer.
type EventKind string

const (
	EventContentTypeRegistered EventKind = "content_type_registered"
	EventContentMirrorUpdated  EventKind = "content_mirror_updated"
)

// Event carries the minimum data consumers need. Only type names are
// carried; consumers can query full records from storage.
type Event struct {
	Kind     EventKind
	TypeName string
	TypeKind string
}

// Bus is a lightweight in-process pub-sub implementation backed by a buffered channel.
type Bus struct {
	ch chan Event
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish attempts to enqueue the event without blocking.
// Returns true if published, false if the buffer is full.
func (b *Bus) Publish(evt Event) bool {
	select {
	case b.ch <- evt:
		return true
	default:
		return false
	}
}

// Subscribe returns a read-only channel for consumers.
func (b *Bus) Subscribe() <-chan Event {
	return b.ch
}
