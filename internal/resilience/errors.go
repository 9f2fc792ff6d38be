package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a failed DoctorOfCredit page fetch or Anthropic call
// as worth another attempt. StatusCode is zero for transport failures.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// MarkHTTP is how the comment source tags a non-2xx page response: err is
// wrapped as transient when IsTransientHTTPStatus(statusCode), so the scrape
// retries throttling and server faults but gives up on 403 or 404 at once.
func MarkHTTP(err error, statusCode int) error {
	if err != nil && IsTransientHTTPStatus(statusCode) {
		return NewTransientError(err, statusCode)
	}
	return err
}

// retryableStatus lists the answers both upstreams give while throttling or
// restarting. The classifier also treats Anthropic's 529 overload as
// retryable; that code is Anthropic-specific and stays out of this set.
var retryableStatus = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsTransientHTTPStatus reports whether statusCode is in the shared
// retryable set.
func IsTransientHTTPStatus(statusCode int) bool {
	return retryableStatus[statusCode]
}

// Messages of dropped connections that reach us flattened into strings by
// the HTTP and SDK clients.
var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err was marked with MarkHTTP or
// NewTransientError, or is a network timeout, reset or refusal. The
// classifier's retry predicate starts here before looking at the status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
