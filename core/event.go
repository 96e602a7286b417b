package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxTopicLength is the longest topic name brokers accept.
	MaxTopicLength = 249

	// MaxNameLength bounds the page name.
	MaxNameLength = 256
)

// PageEvent is one page view accepted by the gateway.
type PageEvent struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Clock is the time source for event timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// ValidateTopic checks topic against the broker naming rule:
// alphanumerics, '.', '_' and '-', bounded length, not "." or "..".
func ValidateTopic(topic string) error {
	switch {
	case topic == "":
		return NewError(KindInvalidArgument, "topic must not be empty")
	case len(topic) > MaxTopicLength:
		return NewError(KindInvalidArgument, "topic exceeds %d characters", MaxTopicLength)
	case topic == "." || topic == "..":
		return NewError(KindInvalidArgument, "topic %q is reserved", topic)
	}
	for i := 0; i < len(topic); i++ {
		if !legalTopicByte(topic[i]) {
			return NewError(KindInvalidArgument, "topic %q contains illegal character %q", topic, topic[i])
		}
	}
	return nil
}

func legalTopicByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '-':
		return true
	}
	return false
}

// ValidateName checks that name is non-empty after trimming, valid UTF-8
// and bounded.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return NewError(KindInvalidArgument, "name must not be empty")
	case len(name) > MaxNameLength:
		return NewError(KindInvalidArgument, "name exceeds %d bytes", MaxNameLength)
	case !utf8.ValidString(name):
		return NewError(KindInvalidArgument, "name is not valid UTF-8")
	}
	return nil
}

// EventFactory builds page events.
type EventFactory struct {
	clock Clock
	newID func() string
}

// NewEventFactory returns a factory reading timestamps from clock.
// A nil clock means SystemClock.
func NewEventFactory(clock Clock) *EventFactory {
	if clock == nil {
		clock = SystemClock
	}
	return &EventFactory{
		clock: clock,
		newID: func() string { return uuid.NewString() },
	}
}

// Build returns a PageEvent for topic and name. The clock is read only after
// validation passed, so rejected input never costs a timestamp.
func (f *EventFactory) Build(topic, name string) (PageEvent, error) {
	if err := ValidateName(name); err != nil {
		return PageEvent{}, err
	}
	return PageEvent{
		ID:        f.newID(),
		Topic:     topic,
		Name:      name,
		Timestamp: f.clock.Now(),
	}, nil
}
