// Package apperrors holds the error taxonomy shared by the proxy, the
// upstream client and the aggregator.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransport marks failures talking to the upstream API: unreachable host,
// timeout, unparseable body or an open circuit breaker. Its detail is logged,
// never sent to clients.
var ErrTransport = errors.New("upstream transport failure")

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.Join(e.Problems, "; ")
}

// UpstreamError is a non-success answer from the upstream API (or from the
// proxy when seen by the aggregator). Code is the upstream's own error code
// and is nil when the body did not carry one.
type UpstreamError struct {
	Status  int
	Message string
	Code    *int
}

func (e *UpstreamError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("upstream returned %d (code %d): %s", e.Status, *e.Code, e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// AggregationError aborts a multi-page aggregation. Page is the upstream page
// whose fetch failed.
type AggregationError struct {
	Page int
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed at upstream page %d: %v", e.Page, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// AsUpstream extracts an UpstreamError from err's chain.
func AsUpstream(err error) (*UpstreamError, bool) {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr, true
	}
	return nil, false
}
