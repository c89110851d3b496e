package dealer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError marks navigation, connection, and timeout failures. These
// are the only failures eligible for the brand-level retry wrapper.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a retryable transport failure.
func NewTransportError(url string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{URL: url, Err: err}
}

// ConfigError marks malformed or missing configuration. Fatal at startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// PersistError marks a failed write in the result sink. Fatal to the save
// step only; the in-memory data stays available for the caller to retry.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("persist: %v", e.Err)
	}
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err should be treated as a transport failure.
// Typed transport errors qualify, including wrapped navigation deadlines, as
// do raw network timeouts that escaped wrapping. Context cancellation never
// does; an interrupted run must not burn retry attempts on its way out.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return !errors.Is(err, context.Canceled)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
