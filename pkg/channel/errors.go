package channel

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is a stable, transport-independent failure category.
type ErrorKind string

const (
	ErrorRateLimited      ErrorKind = "rate_limited"
	ErrorPermissionDenied ErrorKind = "permission_denied"
	ErrorUnreachable      ErrorKind = "unreachable"
	ErrorUnknown          ErrorKind = "unknown"
)

// DeliveryError is returned by Messenger implementations when the platform
// rejects or cannot receive a message.
type DeliveryError struct {
	Kind       ErrorKind
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Kind)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the delivery category of err, or ErrorUnknown.
func KindOf(err error) ErrorKind {
	var delivery *DeliveryError
	if errors.As(err, &delivery) && delivery.Kind != "" {
		return delivery.Kind
	}

	return ErrorUnknown
}
