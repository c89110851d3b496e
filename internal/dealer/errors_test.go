package dealer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutNetError struct {
	timeout bool
}

func (e *timeoutNetError) Error() string   { return "dial tcp: i/o timeout" }
func (e *timeoutNetError) Timeout() bool   { return e.timeout }
func (e *timeoutNetError) Temporary() bool { return e.timeout }

func TestIsTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{
			name: "wrapped connection failure",
			err:  NewTransportError("https://example.com/x", errors.New("connection reset")),
			want: true,
		},
		{
			name: "wrapped navigation deadline",
			err:  NewTransportError("https://example.com/x", context.DeadlineExceeded),
			want: true,
		},
		{
			name: "wrapped cancellation",
			err:  NewTransportError("https://example.com/x", context.Canceled),
			want: false,
		},
		{
			name: "transport error wrapped again",
			err:  fmt.Errorf("brand bmw: %w", NewTransportError("", errors.New("no route to host"))),
			want: true,
		},
		{name: "bare cancellation", err: context.Canceled, want: false},
		{name: "bare deadline", err: context.DeadlineExceeded, want: false},
		{name: "raw net timeout", err: &timeoutNetError{timeout: true}, want: true},
		{name: "raw net non-timeout", err: &timeoutNetError{timeout: false}, want: false},
		{name: "plain error", err: errors.New("selector drift"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransport(tt.err))
		})
	}
}

func TestNewTransportErrorNilStaysNil(t *testing.T) {
	require.NoError(t, NewTransportError("https://example.com", nil))
}

func TestTransportErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError("https://example.com/dealers/bmw/pune", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "https://example.com/dealers/bmw/pune")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPersistErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistError{Path: "output/dealers_x.xlsx", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "output/dealers_x.xlsx")
}
