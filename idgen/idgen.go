// Package idgen generates identifiers for diff requests and emitted events.
//
// Identifiers only label work for logs and host correlation. Request identity
// for staleness checks is carried by generation counters, never by these IDs.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
// They sort by creation time, which keeps request logs readable.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID from gen ("req_", "evt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator used by New.
var Default Generator = UUIDv7()

// Request labels diff requests issued by the coordinator.
var Request Generator = Prefixed("req_", UUIDv7())

// Event labels events delivered to sinks.
var Event Generator = Prefixed("evt_", UUIDv7())

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a bare UUID string (without prefix).
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}
