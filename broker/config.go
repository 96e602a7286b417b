package broker

import (
	"strconv"
	"strings"
	"time"
)

// Config holds broker-agnostic producer configuration.
// Broker plugins extract the fields they need.
type Config struct {
	// Brokers is a list of broker addresses (e.g., "localhost:9092").
	Brokers []string

	// ClientID names this producer to the broker, where supported.
	ClientID string

	// Extra holds plugin-specific configuration.
	Extra map[string]any
}

// Int reads an integer from Extra. Config files decode numbers as int64 or
// float64 and the environment provides strings, so all of those are accepted.
func (c Config) Int(key string) (int, bool) {
	switch v := c.Extra[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// String reads a string from Extra.
func (c Config) String(key string) (string, bool) {
	v, ok := c.Extra[key].(string)
	return v, ok
}

// Bool reads a bool from Extra. The strings "true" and "false" are accepted
// for values that came from the environment.
func (c Config) Bool(key string) (bool, bool) {
	switch v := c.Extra[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// Duration reads a duration from Extra, either as a string ("250ms") or as
// a number of milliseconds ("250" or 250).
func (c Config) Duration(key string) (time.Duration, bool) {
	if s, ok := c.String(key); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d, true
		}
	}
	if n, ok := c.Int(key); ok {
		return time.Duration(n) * time.Millisecond, true
	}
	return 0, false
}
