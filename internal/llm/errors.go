package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies an upstream failure for the retry layer.
type ErrorKind int

const (
	// KindTransient covers timeouts, rate limits and 5xx responses.
	// Transient failures are retried with backoff.
	KindTransient ErrorKind = iota
	// KindRejected covers malformed or disallowed requests. Rejections are
	// never retried.
	KindRejected
)

// UpstreamError wraps a failure from an external generative service with a
// retryability classification.
type UpstreamError struct {
	Kind    ErrorKind
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindRejected:
		return fmt.Sprintf("%s rejected request: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s transient failure: %v", e.Service, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable upstream failure.
func Transient(service string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindTransient, Service: service, Err: err}
}

// Rejected wraps err as a non-retryable upstream rejection.
func Rejected(service string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindRejected, Service: service, Err: err}
}

// IsTransient reports whether err should be retried. Unclassified errors
// default to transient so a flaky network path never aborts a run outright.
func IsTransient(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind == KindTransient
	}
	return true
}

// IsRejected reports whether err is a non-retryable upstream rejection.
func IsRejected(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == KindRejected
}

// ClassifyHTTP maps an HTTP status code from an upstream API to an error
// kind. Rate limits and server errors are transient; everything else in the
// 4xx range is a rejection.
func ClassifyHTTP(service string, status int, err error) *UpstreamError {
	switch {
	case status == http.StatusTooManyRequests:
		return Transient(service, err)
	case status == http.StatusRequestTimeout:
		return Transient(service, err)
	case status >= http.StatusInternalServerError:
		return Transient(service, err)
	case status >= http.StatusBadRequest:
		return Rejected(service, err)
	default:
		return Transient(service, err)
	}
}

// ClassifyErr maps a transport-level error (no HTTP status available) to an
// error kind. Context timeouts and net errors count as transient; a caller
// cancellation is passed through untouched so it is not retried as if the
// upstream had failed.
func ClassifyErr(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(service, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(service, err)
	}
	return Transient(service, err)
}
