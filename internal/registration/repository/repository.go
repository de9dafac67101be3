package repository

import (
	"context"
	"errors"

	"parkncharge/registration/internal/registration/domain"
)

// ErrStoreUnavailable is returned when the store cannot be reached (connection
// refused, dropped connection, deadline exceeded). It is distinct from a
// business status reported by a store function. Callers decide on retries.
var ErrStoreUnavailable = errors.New("registration store unavailable")

// Repository is the only reader/writer of account and OTP state. Each method is
// one atomic round-trip to a store function.
type Repository interface {
	// CreateAccount inserts the driver, vehicle and outstanding OTP.
	CreateAccount(ctx context.Context, p *domain.AccountPayload) (*domain.CreateResult, error)
	// VerifyOTP consumes the outstanding OTP and stores tempPassword as the
	// temporary login credential.
	VerifyOTP(ctx context.Context, userID int64, otp, tempPassword string) (*domain.VerifyResult, error)
	// ReissueOTP replaces the outstanding OTP for an unverified account.
	ReissueOTP(ctx context.Context, userID int64, newOTP string) (*domain.ReissueResult, error)
}
