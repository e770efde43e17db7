// Package message implements the envelope: the typed, serializable
// unit delivered by the bus and broker.
package message

import (
	"time"

	"github.com/google/uuid"
	"github.com/oriys/novafabric/internal/value"
)

// Type identifies the semantic kind of a message.
type Type string

const (
	TypeCommand      Type = "command"
	TypeEvent        Type = "event"
	TypeQuery        Type = "query"
	TypeReply        Type = "reply"
	TypeNotification Type = "notification"
)

// Priority is a total-ordered delivery priority; larger values sort first.
type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Envelope is the message delivered by the bus.
type Envelope struct {
	ID            string
	Topic         string
	Source        string
	Target        string
	CorrelationID string
	TraceID       string
	Type          Type
	Priority      Priority
	Timestamp     time.Time
	TTL           time.Duration // zero means no expiry
	Headers       map[string]string
	Payload       *value.Container
}

// Expired reports whether the message has outlived its TTL, evaluated
// against wall-clock time.
func (e *Envelope) Expired() bool {
	if e.TTL <= 0 {
		return false
	}
	return time.Since(e.Timestamp) > e.TTL
}

// Builder constructs envelopes with sensible defaults, preferring explicit
// constructor functions over bare struct literals for a type with
// generated fields.
type Builder struct {
	env Envelope
}

// NewBuilder starts a builder for the given topic.
func NewBuilder(topic string) *Builder {
	return &Builder{env: Envelope{
		ID:        uuid.NewString(),
		Topic:     topic,
		Type:      TypeEvent,
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
		Headers:   make(map[string]string),
		Payload:   value.New(),
	}}
}

func (b *Builder) Source(s string) *Builder        { b.env.Source = s; return b }
func (b *Builder) Target(s string) *Builder        { b.env.Target = s; return b }
func (b *Builder) CorrelationID(s string) *Builder { b.env.CorrelationID = s; return b }
func (b *Builder) TraceID(s string) *Builder       { b.env.TraceID = s; return b }
func (b *Builder) Type(t Type) *Builder            { b.env.Type = t; return b }
func (b *Builder) Priority(p Priority) *Builder     { b.env.Priority = p; return b }
func (b *Builder) TTL(d time.Duration) *Builder    { b.env.TTL = d; return b }

func (b *Builder) Header(key, val string) *Builder {
	b.env.Headers[key] = val
	return b
}

func (b *Builder) Payload(p *value.Container) *Builder {
	b.env.Payload = p
	return b
}

// Build returns the constructed envelope. The builder must not be reused
// after Build (the returned envelope owns the payload container).
func (b *Builder) Build() *Envelope {
	env := b.env
	return &env
}

// NewReply builds a reply envelope correlated to req, as used by
// bus.Request/reply resolution.
func NewReply(req *Envelope, topic string) *Builder {
	return NewBuilder(topic).
		Type(TypeReply).
		CorrelationID(req.CorrelationID).
		TraceID(req.TraceID).
		Target(req.Source)
}
