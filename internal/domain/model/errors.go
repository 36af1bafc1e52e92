package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrSubscriberClosed is returned when sending to a subscriber whose transport is gone.
	ErrSubscriberClosed = errors.New("subscriber closed")
	// ErrBackpressure is returned when a subscriber's outbound buffer is full.
	ErrBackpressure = errors.New("subscriber buffer full")
	// ErrShutDown is returned by lifecycle calls on a component that was torn down.
	ErrShutDown = errors.New("component shut down")
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("component already started")
)

// ConnectionError means a transport could not be established or dropped.
// It is always retryable.
type ConnectionError struct {
	Endpoint string
	Op       string // "dial" or "read"
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ParseError means a single frame was not a valid event. The frame is discarded
// and the stream carries on.
type ParseError struct {
	Frame  []byte
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse frame: %s: %v", e.Reason, e.Err)
	}
	return "parse frame: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// SendError means delivery to one subscriber failed; that subscriber is dropped.
type SendError struct {
	SubscriberID uuid.UUID
	Err          error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to subscriber %s: %v", e.SubscriberID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// UpstreamError carries a non-2xx answer from the node daemon REST API.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

// IsRetryable reports whether err should be handled by a reconnect loop rather
// than surfaced to a user.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
