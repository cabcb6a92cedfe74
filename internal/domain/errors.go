package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a normal negative result: no account, no market.
	ErrNotFound = errors.New("not found")

	// ErrMalformedAccount is returned when account bytes are shorter than the layout.
	ErrMalformedAccount = errors.New("malformed account")

	// ErrConfiguration indicates a fatal misconfiguration (e.g. wrong program id).
	ErrConfiguration = errors.New("configuration error")

	// ErrUnavailable is returned when a provider has no value (e.g. unknown price feed).
	ErrUnavailable = errors.New("unavailable")
)

// MalformedAccountError carries the context needed to diagnose layout drift.
type MalformedAccountError struct {
	Address string
	Layout  string
	Want    int
	Got     int
}

func (e *MalformedAccountError) Error() string {
	return fmt.Sprintf("malformed %s account %s: want at least %d bytes, got %d",
		e.Layout, e.Address, e.Want, e.Got)
}

// Unwrap allows errors.Is(err, ErrMalformedAccount).
func (e *MalformedAccountError) Unwrap() error {
	return ErrMalformedAccount
}

// TransportError wraps network, timeout and decoding failures talking to any
// external provider. Recoverable; callers decide whether to retry.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
