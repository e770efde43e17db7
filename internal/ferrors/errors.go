// Package ferrors defines the fabric-wide error categories used by every
// fallible operation in novafabric, following the convention of
// one sentinel error per failure mode (e.g. mq.ErrNoMessage,
// statefn.ErrStateNotFound) but centralized into a single typed code so
// callers can branch on category without importing every package.
package ferrors

import (
	"errors"
	"fmt"
)

// Code identifies a stable error category, grouped into bands below.
type Code int

const (
	// Message errors.
	InvalidMessage Code = iota + 1
	MessageTooLarge
	MessageExpired
	InvalidPayload

	// Routing errors.
	RoutingFailed
	UnknownTopic
	NoSubscribers
	InvalidTopicPattern

	// Queue errors.
	QueueFull
	QueueEmpty
	QueueStopped
	EnqueueFailed
	DequeueFailed

	// Subscription errors.
	SubscriptionFailed
	SubscriptionNotFound
	DuplicateSubscription
	UnsubscribeFailed

	// Publishing errors.
	PublicationFailed
	NoRouteFound
	MessageRejected
	BrokerUnavailable

	// Transport errors (contract surface only; no transport is implemented).
	ConnectionFailed
	SendTimeout
	ReceiveTimeout
	AuthenticationFailed
	NotConnected

	// Task / worker errors.
	TaskNotFound
	DuplicateRoute
	Timeout
	InvalidTransition
	TaskCancelled
)

var names = map[Code]string{
	InvalidMessage:        "invalid_message",
	MessageTooLarge:       "message_too_large",
	MessageExpired:        "message_expired",
	InvalidPayload:        "invalid_payload",
	RoutingFailed:         "routing_failed",
	UnknownTopic:          "unknown_topic",
	NoSubscribers:         "no_subscribers",
	InvalidTopicPattern:   "invalid_topic_pattern",
	QueueFull:             "queue_full",
	QueueEmpty:            "queue_empty",
	QueueStopped:          "queue_stopped",
	EnqueueFailed:         "enqueue_failed",
	DequeueFailed:         "dequeue_failed",
	SubscriptionFailed:    "subscription_failed",
	SubscriptionNotFound:  "subscription_not_found",
	DuplicateSubscription: "duplicate_subscription",
	UnsubscribeFailed:     "unsubscribe_failed",
	PublicationFailed:     "publication_failed",
	NoRouteFound:          "no_route_found",
	MessageRejected:       "message_rejected",
	BrokerUnavailable:     "broker_unavailable",
	ConnectionFailed:      "connection_failed",
	SendTimeout:           "send_timeout",
	ReceiveTimeout:        "receive_timeout",
	AuthenticationFailed:  "authentication_failed",
	NotConnected:          "not_connected",
	TaskNotFound:          "task_not_found",
	DuplicateRoute:        "duplicate_route",
	Timeout:               "timeout",
	InvalidTransition:     "invalid_transition",
	TaskCancelled:         "task_cancelled",
}

// String returns the stable error-code name used in logs and error text.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the concrete error type returned by every fallible operation.
// It carries enough context to log and to branch on programmatically via
// errors.As / Is, without requiring callers to know the originating package.
type Error struct {
	Code    Code
	Op      string // operation that produced the error, e.g. "bus.Publish"
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ferrors.New(code, ...)) style comparisons by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs a fabric error for the given category.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap constructs a fabric error that wraps an underlying cause.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Message: err.Error(), Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
