package blob

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestRetryableAppend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"precondition", &googleapi.Error{Code: http.StatusPreconditionFailed}, true},
		{"server error", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"plain", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retryableAppend(tt.err))
		})
	}
}
