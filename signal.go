// Package sigbus implements a typed, in-process signal bus: a pub/sub
// runtime with pluggable transport, persistence, and execution layers,
// together with the clock subsystem (see package clock) used to drive
// scheduled signal production.
//
// Host programs declare a closed set of signal types, produce them from
// external observers (package source and its subpackages), and dispatch
// them through a middleware chain to type-indexed and type-agnostic
// subscribers (see package bus), with durability hooks for at-least-once
// replay after a restart (see package store).
package sigbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Signal is the core interface for everything flowing through the bus.
// Signals are immutable once created; any modification creates a new one.
type Signal interface {
	ID() string        // Opaque unique identifier, stable across store round trips.
	Type() string       // Short discriminator drawn from a closed, user-defined set. Never empty.
	Timestamp() time.Time // Production time.
	Source() string      // Optional origin tag; empty if not set.

	Data() any         // Strongly-typed payload.
	DataBytes() []byte // JSON-serialized payload, for transport/storage.
}

// Metadata carries a signal's identity and timing fields independent of
// its payload, so stores and transports can round-trip it without knowing
// the payload's concrete type.
type Metadata struct {
	SignalID   string    `json:"id"`
	SignalType string    `json:"type"`
	Timestamp  time.Time `json:"ts"`
	Source     string    `json:"source,omitempty"`
}

// BaseSignal is the generic Signal implementation. T is the payload type,
// giving callers type-safe access via TypedData while still satisfying the
// untyped Signal interface for bus plumbing.
type BaseSignal[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`

	cachedBytes []byte
}

var _ Signal = (*BaseSignal[any])(nil)

func (s *BaseSignal[T]) ID() string          { return s.Meta.SignalID }
func (s *BaseSignal[T]) Type() string        { return s.Meta.SignalType }
func (s *BaseSignal[T]) Timestamp() time.Time { return s.Meta.Timestamp }
func (s *BaseSignal[T]) Source() string      { return s.Meta.Source }

// Data returns the payload as any.
func (s *BaseSignal[T]) Data() any { return s.Payload }

// TypedData returns the strongly-typed payload.
func (s *BaseSignal[T]) TypedData() T { return s.Payload }

// DataBytes returns the JSON-serialized payload. The result is cached.
func (s *BaseSignal[T]) DataBytes() []byte {
	if s.cachedBytes == nil {
		s.cachedBytes, _ = json.Marshal(s.Payload)
	}
	return s.cachedBytes
}

// MarshalJSON implements json.Marshaler.
func (s *BaseSignal[T]) MarshalJSON() ([]byte, error) {
	type alias BaseSignal[T]
	return json.Marshal((*alias)(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *BaseSignal[T]) UnmarshalJSON(data []byte) error {
	type alias BaseSignal[T]
	if err := json.Unmarshal(data, (*alias)(s)); err != nil {
		return err
	}
	s.cachedBytes = nil
	return nil
}

// Option configures signal creation.
type Option func(*signalConfig)

type signalConfig struct {
	id        string
	source    string
	timestamp time.Time
}

// WithID sets a specific signal ID (default: a random UUID).
func WithID(id string) Option {
	return func(cfg *signalConfig) { cfg.id = id }
}

// WithSource sets the origin tag.
func WithSource(source string) Option {
	return func(cfg *signalConfig) { cfg.source = source }
}

// WithTimestamp sets a specific production timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *signalConfig) { cfg.timestamp = t }
}

// New creates a signal of the given type carrying a typed payload.
// signalType must not be empty; New panics otherwise.
func New[T any](signalType string, payload T, opts ...Option) *BaseSignal[T] {
	if signalType == "" {
		panic("sigbus: signalType must not be empty")
	}

	cfg := &signalConfig{
		id:        uuid.New().String(),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &BaseSignal[T]{
		Meta: Metadata{
			SignalID:   cfg.id,
			SignalType: signalType,
			Timestamp:  cfg.timestamp,
			Source:     cfg.source,
		},
		Payload: payload,
	}
}

// NewAny creates a signal with an untyped payload, for callers that don't
// need type-safe payload access.
func NewAny(signalType string, payload any, opts ...Option) *BaseSignal[any] {
	return New(signalType, payload, opts...)
}
