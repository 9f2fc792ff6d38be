package source

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrMissingID means a comment node had no recoverable permalink id.
	ErrMissingID = eris.New("source: comment id not found")
	// ErrBadTimestamp means a rendered date did not match the expected pattern.
	ErrBadTimestamp = eris.New("source: unparseable timestamp")
	// ErrMalformedResponse means the endpoint answered without the comment payload.
	ErrMalformedResponse = eris.New("source: malformed response")
)

// StatusError is returned when the source answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: %s %s returned status %d", e.Method, e.URL, e.StatusCode)
}
