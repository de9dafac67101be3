package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"parkncharge/registration/internal/otp"
	"parkncharge/registration/internal/registration/domain"
	"parkncharge/registration/internal/security"
)

const (
	registerQuery = `SELECT status, user_id FROM web_user_register_driver($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	checkOTPQuery = `SELECT status, mobile_number, name FROM web_user_check_otp_registration($1, $2, $3)`
	resendQuery   = `SELECT status, mobile_number, name FROM web_user_resend_registration_otp($1, $2, $3)`
)

// PostgresRepository calls the registration store functions. OTPs are sent as
// SHA-256 hashes and temporary passwords as bcrypt hashes, so no plaintext
// secret is written to the database.
type PostgresRepository struct {
	db     *sql.DB
	hasher *security.Hasher
	otpTTL time.Duration
}

// NewPostgresRepository returns a repository backed by db. otpTTL is how long an
// issued OTP stays valid.
func NewPostgresRepository(db *sql.DB, hasher *security.Hasher, otpTTL time.Duration) *PostgresRepository {
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &PostgresRepository{db: db, hasher: hasher, otpTTL: otpTTL}
}

// CreateAccount calls web_user_register_driver.
func (r *PostgresRepository) CreateAccount(ctx context.Context, p *domain.AccountPayload) (*domain.CreateResult, error) {
	var (
		status string
		userID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, registerQuery,
		p.FullName,
		p.Address,
		p.ContactNumber,
		p.EmailAddress,
		p.VehiclePlateNumber,
		p.VehicleBrand,
		p.VehicleModel,
		p.Username,
		otp.Hash(p.OTP),
		p.RFID,
		r.ttlSeconds(),
	).Scan(&status, &userID)
	if err != nil {
		return nil, classify("create account", err)
	}
	return &domain.CreateResult{Status: status, UserID: userID.Int64}, nil
}

// VerifyOTP calls web_user_check_otp_registration.
func (r *PostgresRepository) VerifyOTP(ctx context.Context, userID int64, code, tempPassword string) (*domain.VerifyResult, error) {
	pwHash, err := r.hasher.HashPassword(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("verify otp: hash temporary password: %w", err)
	}
	var status string
	var mobile, name sql.NullString
	err = r.db.QueryRowContext(ctx, checkOTPQuery, userID, otp.Hash(code), pwHash).Scan(&status, &mobile, &name)
	if err != nil {
		return nil, classify("verify otp", err)
	}
	return &domain.VerifyResult{Status: status, MobileNumber: mobile.String, Name: name.String}, nil
}

// ReissueOTP calls web_user_resend_registration_otp.
func (r *PostgresRepository) ReissueOTP(ctx context.Context, userID int64, newOTP string) (*domain.ReissueResult, error) {
	var status string
	var mobile, name sql.NullString
	err := r.db.QueryRowContext(ctx, resendQuery, userID, otp.Hash(newOTP), r.ttlSeconds()).Scan(&status, &mobile, &name)
	if err != nil {
		return nil, classify("reissue otp", err)
	}
	return &domain.ReissueResult{Status: status, MobileNumber: mobile.String, Name: name.String}, nil
}

// ttlSeconds rounds up so a sub-second TTL never issues an already expired code.
func (r *PostgresRepository) ttlSeconds() int64 {
	return int64((r.otpTTL + time.Second - 1) / time.Second)
}

// classify wraps err with ErrStoreUnavailable unless the server answered with a
// SQL error, which is a backend failure rather than a connectivity one.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: store function returned no row: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
