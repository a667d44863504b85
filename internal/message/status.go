package message

// Status is the delivery state of a message as seen by this client.
//
// Lifecycle: sending -> {sent, failed}, sent -> delivered, delivered -> read.
// Any non-terminal status may jump straight to failed. failed and read are
// terminal; nothing in the core retries a failed message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Rank orders statuses along the delivery path. Unknown statuses rank zero
// so they never displace a known one.
func (s Status) Rank() int {
	switch s {
	case StatusSending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	case StatusFailed:
		// failed sits outside the delivery path but is terminal
		return 5
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool { return s.Rank() > 0 }

// IsTerminal reports whether no further transition is accepted.
func (s Status) IsTerminal() bool {
	return s == StatusRead || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal single step
// or skip-ahead. Skipping intermediate states (sending -> read) is allowed
// because transport may deliver a later state without the earlier ones.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	if !s.Valid() {
		return true
	}
	return next.Rank() > s.Rank()
}

// Merge applies an incoming status to the current one. Duplicate and
// out-of-order deliveries never regress the message.
func Merge(current, incoming Status) Status {
	if current.CanTransition(incoming) {
		return incoming
	}
	return current
}

// Icon is the glyph rendered next to the current user's own messages.
// Unknown statuses fall back to the failed glyph.
func (s Status) Icon() string {
	switch s {
	case StatusSending:
		return "◷"
	case StatusSent:
		return "✓"
	case StatusDelivered:
		return "✓✓"
	case StatusRead:
		return "✓✓•"
	default:
		return "!"
	}
}
