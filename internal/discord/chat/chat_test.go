package chat

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/disgoorg/disgo/rest"
	"github.com/stretchr/testify/assert"
)

func restError(status int) error {
	return &rest.Error{Response: &http.Response{StatusCode: status}}
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("boom"), want: 0},
		{name: "rest error", err: restError(http.StatusForbidden), want: http.StatusForbidden},
		{name: "wrapped", err: fmt.Errorf("failed to send: %w", restError(http.StatusNotFound)), want: http.StatusNotFound},
		{name: "no response", err: &rest.Error{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestClassifiers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(restError(http.StatusNotFound)))
	assert.True(t, IsNotFound(fmt.Errorf("%w: webhook", ErrNotFound)))
	assert.False(t, IsNotFound(restError(http.StatusForbidden)))
	assert.True(t, IsForbidden(restError(http.StatusForbidden)))
	assert.True(t, IsRateLimited(restError(http.StatusTooManyRequests)))
	assert.False(t, IsRateLimited(errors.New("boom")))
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)

	transport, ok := c.Transport.(*http.Transport)
	assert.True(t, ok)
	assert.Equal(t, 500, transport.MaxIdleConnsPerHost)
}
