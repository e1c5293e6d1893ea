package espmodels

import (
	"fmt"
	"net/http"
)

// ValidationError indicates a malformed or missing input value. It is always
// surfaced to the caller as a 400-class response and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError indicates the persistence layer was unreachable or rejected
// an operation. Surfaced as a 500-class response.
type StorageError struct {
	Op         string
	WrappedErr error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.WrappedErr)
}
func (e *StorageError) Unwrap() error { return e.WrappedErr }

// RelayUpstreamError indicates the device's update endpoint answered with a
// non-success status. The device's status code and message are propagated
// to the caller unchanged.
type RelayUpstreamError struct {
	UpdateURL     string
	StatusCode    int
	DeviceMessage string
}

func (e *RelayUpstreamError) Error() string {
	return fmt.Sprintf("device at %s rejected firmware (status %d): %s", e.UpdateURL, e.StatusCode, e.Message())
}

// Message returns the device's message, falling back to the HTTP status
// text when the device sent an empty body.
func (e *RelayUpstreamError) Message() string {
	if e.DeviceMessage != "" {
		return e.DeviceMessage
	}
	return http.StatusText(e.StatusCode)
}

// RelayTransportError indicates no response was received from the device at
// all (timeout, DNS failure, network unreachable). Surfaced as a generic
// 500-class response.
type RelayTransportError struct {
	UpdateURL  string
	WrappedErr error
}

func (e *RelayTransportError) Error() string {
	return fmt.Sprintf("no response from device update endpoint %s: %v", e.UpdateURL, e.WrappedErr)
}
func (e *RelayTransportError) Unwrap() error { return e.WrappedErr }
