package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrLogFull is returned when an append would exceed the configured cap.
var ErrLogFull = errors.New("audit: log is at capacity")

// UnknownMandateError is returned when an event references a mandate the
// log's lookup does not know.
type UnknownMandateError struct {
	MandateID string
	Event     Kind
}

func (e *UnknownMandateError) Error() string {
	return fmt.Sprintf("audit: %s references unknown mandate %s", e.Event, e.MandateID)
}

// Order selects the direction of a listing.
type Order int

const (
	// Chronological is append order.
	Chronological Order = iota
	// ReverseChronological is most recent first, the display order.
	ReverseChronological
)

func (o Order) String() string {
	if o == ReverseChronological {
		return "reverse_chronological"
	}
	return "chronological"
}

// ParseOrder reads an order name. The empty string selects
// ReverseChronological.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reverse", "reverse_chronological", "desc":
		return ReverseChronological, nil
	case "chronological", "asc":
		return Chronological, nil
	}
	return 0, fmt.Errorf("audit: unknown order %q", s)
}

// Log is an append-only sequence of events. Events are never modified or
// removed once appended. A Log belongs to one session and is not safe for
// concurrent use.
type Log struct {
	events []Event
	max    int
	known  func(mandateID string) bool
}

// Option customises a Log.
type Option func(*Log)

// WithCapacity caps the log at n events. Zero or negative means unbounded.
func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.max = n
		}
	}
}

// WithMandateLookup makes Append refuse events whose mandate id known does
// not recognise.
func WithMandateLookup(known func(mandateID string) bool) Option {
	return func(l *Log) { l.known = known }
}

// NewLog returns an empty Log.
func NewLog(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Len returns the number of events appended so far.
func (l *Log) Len() int { return len(l.events) }

// Remaining returns how many more events fit, or -1 when unbounded.
func (l *Log) Remaining() int {
	if l.max == 0 {
		return -1
	}
	return l.max - len(l.events)
}

// Fits reports whether n more events can be appended.
func (l *Log) Fits(n int) bool {
	r := l.Remaining()
	return r < 0 || r >= n
}

// Append adds e at the end of the log.
func (l *Log) Append(e Event) error {
	if !l.Fits(1) {
		return ErrLogFull
	}
	if id := e.Mandate(); id != "" && l.known != nil && !l.known(id) {
		return &UnknownMandateError{MandateID: id, Event: e.Kind()}
	}
	l.events = append(l.events, detach(e))
	return nil
}

// List returns the events in the requested order. The returned events are
// copies; changing them does not affect the log.
func (l *Log) List(order Order) []Event {
	out := make([]Event, len(l.events))
	for i, e := range l.events {
		at := i
		if order == ReverseChronological {
			at = len(l.events) - 1 - i
		}
		out[at] = detach(e)
	}
	return out
}

// Export renders the whole log, chronologically, as an indented JSON array.
func (l *Log) Export() ([]byte, error) {
	events := l.List(Chronological)
	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return b, nil
}
