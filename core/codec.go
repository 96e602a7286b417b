package core

import (
	"encoding/json"
	"fmt"
)

// Codec serializes page events for the wire.
// Implement this interface for other formats (Protobuf, Avro, etc.).
type Codec interface {
	ContentType() string
	Encode(ev PageEvent) ([]byte, error)
}

// JSONCodec encodes events as JSON.
type JSONCodec struct{}

func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) Encode(ev PageEvent) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return b, nil
}

// Encode runs c (JSONCodec when nil) and reports failures as
// KindSerializationError.
func Encode(c Codec, ev PageEvent) ([]byte, error) {
	if c == nil {
		c = JSONCodec{}
	}
	b, err := c.Encode(ev)
	if err != nil {
		return nil, &Error{Kind: KindSerializationError, Detail: "encode event", EventID: ev.ID, Err: err}
	}
	return b, nil
}

// Headers returns the record headers every producer attaches.
func Headers(c Codec, ev PageEvent) map[string]string {
	if c == nil {
		c = JSONCodec{}
	}
	return map[string]string{
		HeaderEventID:     ev.ID,
		HeaderContentType: c.ContentType(),
	}
}

const (
	HeaderEventID     = "event-id"
	HeaderContentType = "content-type"
)
