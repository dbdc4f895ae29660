package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusUnauthorized, ErrorTypeAuth},
		{http.StatusForbidden, ErrorTypeAuth},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusBadGateway, ErrorTypeServerError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "https://example.com/posts.json")
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("fetch page: %w", FromStatus(503, "u"))
	assert.Equal(t, 503, StatusCode(wrapped))
	assert.Equal(t, 0, StatusCode(fmt.Errorf("plain")))
	assert.Equal(t, 0, StatusCode(Network(fmt.Errorf("dial tcp: refused"))))
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeParsing))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(504))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}
