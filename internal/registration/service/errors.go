package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failed registration use case. The set is closed.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindCrypto
	KindRegistrationRejected
	KindOTPVerificationFailed
	KindOTPReissueFailed
	KindStoreUnavailable
	KindDeliveryFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindCrypto:
		return "crypto_error"
	case KindRegistrationRejected:
		return "registration_rejected"
	case KindOTPVerificationFailed:
		return "otp_verification_failed"
	case KindOTPReissueFailed:
		return "otp_reissue_failed"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindDeliveryFailed:
		return "delivery_failed"
	default:
		return "unknown"
	}
}

// Error is returned by RegistrationService. Status holds the store's business
// status for the rejection kinds and is otherwise empty. Err is the cause.
type Error struct {
	Kind   Kind
	Status string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Status, e.Err)
	case e.Status != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so errors.Is(err, ErrRegistrationRejected) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels for errors.Is.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrCrypto                = &Error{Kind: KindCrypto}
	ErrRegistrationRejected  = &Error{Kind: KindRegistrationRejected}
	ErrOTPVerificationFailed = &Error{Kind: KindOTPVerificationFailed}
	ErrOTPReissueFailed      = &Error{Kind: KindOTPReissueFailed}
	ErrStoreUnavailable      = &Error{Kind: KindStoreUnavailable}
)

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// NewValidationError reports a malformed or missing input field.
func NewValidationError(msg string) error {
	return &Error{Kind: KindValidation, Err: errors.New(msg)}
}

func cryptoError(err error) error {
	return &Error{Kind: KindCrypto, Err: err}
}

func rejected(kind Kind, status string) error {
	return &Error{Kind: kind, Status: status}
}
