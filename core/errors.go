package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProducerClosed is returned when a send is attempted on a closed producer.
	ErrProducerClosed = errors.New("eventgate: producer is closed")

	// ErrNoProducer is returned when a gateway is created without a producer.
	ErrNoProducer = errors.New("eventgate: producer is nil")

	// ErrBufferFull is returned when a producer's send buffer cannot take more records.
	ErrBufferFull = errors.New("eventgate: send buffer is full")
)

// Kind classifies a publish failure as seen by the caller.
type Kind int

const (
	KindUnknown Kind = iota

	// KindInvalidArgument is a bad topic or name. Local, never retried.
	KindInvalidArgument

	// KindBrokerUnavailable is a transient broker failure that survived the
	// producer's own retries.
	KindBrokerUnavailable

	// KindTopicNotFound means the broker (or the gateway allowlist) rejected the topic.
	KindTopicNotFound

	// KindSerializationError means the event could not be encoded for the wire.
	KindSerializationError

	// KindTimeout means no ack arrived in time. The broker may still deliver.
	KindTimeout

	// KindCanceled means the caller went away before an ack arrived.
	// The broker may still deliver.
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	KindInvalidArgument:    "InvalidArgument",
	KindBrokerUnavailable:  "BrokerUnavailable",
	KindTopicNotFound:      "TopicNotFound",
	KindSerializationError: "SerializationError",
	KindTimeout:            "Timeout",
	KindCanceled:           "Canceled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// OutcomeUnknown reports whether a failure of this kind can leave delivery
// undecided, as opposed to definitely not delivered.
func (k Kind) OutcomeUnknown() bool {
	return k == KindTimeout || k == KindCanceled || k == KindUnknown
}

// Error is the failure half of a publish outcome.
type Error struct {
	Kind   Kind
	Detail string

	// EventID is set once an event was built, so callers can reconcile
	// ambiguous outcomes.
	EventID string

	Err error
}

func (e *Error) Error() string {
	msg := "eventgate: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// OutcomeUnknown reports whether the event may still be delivered. Timeouts
// and cancellations only leave the outcome open once an event was sent,
// which is when EventID is set.
func (e *Error) OutcomeUnknown() bool {
	switch e.Kind {
	case KindTimeout, KindCanceled:
		return e.EventID != ""
	}
	return e.Kind.OutcomeUnknown()
}

// NewError builds an *Error with a formatted detail.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error around cause.
func WrapError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// AsError maps any producer-side error onto the caller-facing taxonomy.
// Errors that already carry a Kind are returned as is.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(KindTimeout, "delivery timed out", err)
	case errors.Is(err, context.Canceled):
		return WrapError(KindCanceled, "delivery canceled", err)
	case errors.Is(err, ErrProducerClosed), errors.Is(err, ErrBufferFull):
		return WrapError(KindBrokerUnavailable, "", err)
	default:
		return WrapError(KindBrokerUnavailable, "send failed", err)
	}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}
