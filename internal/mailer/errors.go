package mailer

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Kind classifies a delivery failure so callers can decide between
// retrying, reporting, and giving up.
type Kind string

const (
	// KindSerialization means the message could not be rendered to bytes.
	// Retrying cannot help.
	KindSerialization Kind = "serialization failure"

	// KindTransport means the remote service could not be reached or did
	// not answer (connection, DNS, TLS, cancelled context).
	KindTransport Kind = "transport failure"

	// KindAPI means the remote service received the request and rejected
	// it (invalid address, throttling, authorization).
	KindAPI Kind = "api error"
)

// Error is a classified delivery failure. The provider detail stays
// reachable through Unwrap, so errors.Is/errors.As keep working on the
// wrapped error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapSerialization marks err as a rendering failure.
func WrapSerialization(err error) error {
	return &Error{Kind: KindSerialization, Err: err}
}

// WrapTransport marks err as a transport-level failure.
func WrapTransport(err error) error {
	return &Error{Kind: KindTransport, Err: err}
}

// WrapAPI marks err as a rejection reported by the remote service.
func WrapAPI(err error) error {
	return &Error{Kind: KindAPI, Err: err}
}

// Classify wraps an error returned by an AWS client call. Errors the
// service itself reported become KindAPI; everything in between (network,
// TLS, cancelled context) becomes KindTransport.
func Classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return WrapAPI(err)
	}
	return WrapTransport(err)
}

// KindOf returns the classification of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind, true
	}
	return "", false
}

// IsThrottle reports whether err is the service's backpressure signal.
// The classic and the v2 API use different error codes for it.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "TooManyRequestsException", "Throttling", "ThrottlingException":
		return true
	}
	return false
}
