package log

// Logger is the interface applications implement to receive journal events.
// Pass nil or NoopLogger to disable the journal.
type Logger interface {
	// Log records an event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking stalls the caller.
	Log(event Event)
}

// NoopLogger discards all events. Use when the journal is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// OrNoop returns l, or NoopLogger if l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

// Stamped fills in InstanceID and Boot on every event before passing it on.
type Stamped struct {
	next       Logger
	instanceID string
	boot       uint32
}

// NewStamped creates a logger that tags events with the device identity.
func NewStamped(next Logger, instanceID string, boot uint32) *Stamped {
	return &Stamped{next: OrNoop(next), instanceID: instanceID, boot: boot}
}

// Log tags and forwards the event.
func (s *Stamped) Log(event Event) {
	if event.InstanceID == "" {
		event.InstanceID = s.instanceID
	}
	if event.Boot == 0 {
		event.Boot = s.boot
	}
	s.next.Log(event)
}

var _ Logger = (*Stamped)(nil)
