// Package service implements driver registration: account creation with an
// SMS one-time passcode, OTP verification, and OTP resend.
//
// Each use case is one linear sequence: generate secrets, make a single store
// call, then (only on SUCCESS) send at most one SMS. A failed SMS never rolls
// back the store mutation and never fails the use case; it is reported through
// DeliveryOK so callers can offer the resend path.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parkncharge/registration/internal/logging"
	"parkncharge/registration/internal/metrics"
	"parkncharge/registration/internal/otp"
	"parkncharge/registration/internal/registration/domain"
	"parkncharge/registration/internal/registration/repository"
	"parkncharge/registration/internal/sms"
)

const tracerName = "parkncharge/registration/service"

// FieldCodec protects PII fields before persistence. *security.Codec implements it.
type FieldCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// RegisterResult is returned by Register. OTP is the plaintext code that was
// sent (or attempted) by SMS.
type RegisterResult struct {
	Status     string
	UserID     int64
	OTP        string
	DeliveryOK bool
}

// CheckOTPResult is returned by CheckOTP.
type CheckOTPResult struct {
	Status     string
	DeliveryOK bool
}

// ResendOTPResult is returned by ResendOTP.
type ResendOTPResult struct {
	Status     string
	DeliveryOK bool
}

// RegistrationService coordinates the codec, OTP generator, store and SMS
// dispatcher. It holds no mutable state and is safe for concurrent use.
type RegistrationService struct {
	repo       repository.Repository
	codec      FieldCodec
	gen        otp.Generator
	dispatcher sms.Dispatcher
	log        zerolog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewRegistrationService returns a RegistrationService. m may be nil.
func NewRegistrationService(
	repo repository.Repository,
	codec FieldCodec,
	gen otp.Generator,
	dispatcher sms.Dispatcher,
	log zerolog.Logger,
	m *metrics.Metrics,
) *RegistrationService {
	return &RegistrationService{
		repo:       repo,
		codec:      codec,
		gen:        gen,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "registration").Logger(),
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
	}
}

// Register creates the account and texts the registration OTP to the
// caller-supplied contact number.
func (s *RegistrationService) Register(ctx context.Context, req domain.RegistrationRequest) (res *RegisterResult, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.Register")
	defer func() { s.finish(span, metrics.UseCaseRegister, err) }()

	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	code, err := s.gen.Code()
	if err != nil {
		return nil, cryptoError(fmt.Errorf("register: generate otp: %w", err))
	}
	rfid := s.gen.RFID()

	payload, err := s.buildPayload(req, code, rfid)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	created, err := s.repo.CreateAccount(ctx, payload)
	s.metrics.ObserveStore(metrics.UseCaseRegister, time.Since(start).Seconds())
	if err != nil {
		return nil, storeError(KindRegistrationRejected, err)
	}
	span.SetAttributes(attribute.String("registration.status", created.Status))
	if created.Status != domain.StatusSuccess {
		s.log.Info().Str("status", created.Status).Msg("registration rejected by store")
		return nil, rejected(KindRegistrationRejected, created.Status)
	}
	span.SetAttributes(attribute.Int64("registration.user_id", created.UserID))

	msg := registrationMessage(req.FullName(), code)
	ok := s.notify(ctx, metrics.UseCaseRegister, created.UserID, req.ContactNumber, msg)

	return &RegisterResult{
		Status:     created.Status,
		UserID:     created.UserID,
		OTP:        code,
		DeliveryOK: ok,
	}, nil
}

// CheckOTP verifies the outstanding OTP for userID. On success the store
// activates the account with a freshly generated temporary password, which is
// then texted to the account's contact number.
func (s *RegistrationService) CheckOTP(ctx context.Context, userID int64, code string) (res *CheckOTPResult, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.CheckOTP",
		trace.WithAttributes(attribute.Int64("registration.user_id", userID)))
	defer func() { s.finish(span, metrics.UseCaseCheckOTP, err) }()

	if userID <= 0 {
		return nil, NewValidationError("Missing required property: user_id")
	}
	if code == "" {
		return nil, NewValidationError("Missing required property: otp")
	}
	tempPassword, err := s.gen.TemporaryPassword()
	if err != nil {
		return nil, cryptoError(fmt.Errorf("check otp: generate temporary password: %w", err))
	}

	start := time.Now()
	verified, err := s.repo.VerifyOTP(ctx, userID, code, tempPassword)
	s.metrics.ObserveStore(metrics.UseCaseCheckOTP, time.Since(start).Seconds())
	if err != nil {
		return nil, storeError(KindOTPVerificationFailed, err)
	}
	span.SetAttributes(attribute.String("registration.status", verified.Status))
	if verified.Status != domain.StatusSuccess {
		s.log.Info().Int64("user_id", userID).Str("status", verified.Status).Msg("otp verification rejected by store")
		return nil, rejected(KindOTPVerificationFailed, verified.Status)
	}

	// The account is verified from here on; a decrypt failure cannot undo that.
	mobile, name, err := s.decryptContact(verified.MobileNumber, verified.Name)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("account verified but contact fields could not be decrypted")
		return nil, err
	}

	ok := s.notify(ctx, metrics.UseCaseCheckOTP, userID, mobile, verifiedMessage(name, tempPassword))
	return &CheckOTPResult{Status: verified.Status, DeliveryOK: ok}, nil
}

// ResendOTP replaces the outstanding OTP for userID and texts the new one.
func (s *RegistrationService) ResendOTP(ctx context.Context, userID int64) (res *ResendOTPResult, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.ResendOTP",
		trace.WithAttributes(attribute.Int64("registration.user_id", userID)))
	defer func() { s.finish(span, metrics.UseCaseResendOTP, err) }()

	if userID <= 0 {
		return nil, NewValidationError("Missing required property: user_id")
	}
	code, err := s.gen.Code()
	if err != nil {
		return nil, cryptoError(fmt.Errorf("resend otp: generate otp: %w", err))
	}

	start := time.Now()
	reissued, err := s.repo.ReissueOTP(ctx, userID, code)
	s.metrics.ObserveStore(metrics.UseCaseResendOTP, time.Since(start).Seconds())
	if err != nil {
		return nil, storeError(KindOTPReissueFailed, err)
	}
	span.SetAttributes(attribute.String("registration.status", reissued.Status))
	if reissued.Status != domain.StatusSuccess {
		s.log.Info().Int64("user_id", userID).Str("status", reissued.Status).Msg("otp reissue rejected by store")
		return nil, rejected(KindOTPReissueFailed, reissued.Status)
	}

	mobile, name, err := s.decryptContact(reissued.MobileNumber, reissued.Name)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("otp reissued but contact fields could not be decrypted")
		return nil, err
	}

	ok := s.notify(ctx, metrics.UseCaseResendOTP, userID, mobile, resendMessage(name, code))
	return &ResendOTPResult{Status: reissued.Status, DeliveryOK: ok}, nil
}

// buildPayload encrypts every PII field exactly once. Username, OTP and RFID stay plaintext.
func (s *RegistrationService) buildPayload(req domain.RegistrationRequest, code, rfid string) (*domain.AccountPayload, error) {
	p := &domain.AccountPayload{Username: req.Username, OTP: code, RFID: rfid}
	fields := []struct {
		plain string
		dst   *string
	}{
		{req.FullName(), &p.FullName},
		{req.Address, &p.Address},
		{req.ContactNumber, &p.ContactNumber},
		{req.EmailAddress, &p.EmailAddress},
		{req.VehiclePlateNumber, &p.VehiclePlateNumber},
		{req.VehicleBrand, &p.VehicleBrand},
		{req.VehicleModel, &p.VehicleModel},
	}
	for _, f := range fields {
		ct, err := s.codec.Encrypt(f.plain)
		if err != nil {
			return nil, cryptoError(err)
		}
		*f.dst = ct
	}
	return p, nil
}

func (s *RegistrationService) decryptContact(mobileCT, nameCT string) (mobile, name string, err error) {
	if mobile, err = s.codec.Decrypt(mobileCT); err != nil {
		return "", "", cryptoError(err)
	}
	if name, err = s.codec.Decrypt(nameCT); err != nil {
		return "", "", cryptoError(err)
	}
	return mobile, name, nil
}

// notify makes the single delivery attempt and reports whether it succeeded.
func (s *RegistrationService) notify(ctx context.Context, useCase string, userID int64, contactNumber, message string) bool {
	ctx, span := s.tracer.Start(ctx, "sms.Send")
	defer span.End()

	if err := s.dispatcher.Send(ctx, contactNumber, message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		s.metrics.DeliveryFailed(useCase)
		s.log.Warn().
			Err(&Error{Kind: KindDeliveryFailed, Err: err}).
			Str("use_case", useCase).
			Int64("user_id", userID).
			Str("destination", logging.MaskPhone(contactNumber)).
			Msg("sms delivery failed after store mutation; not retried")
		return false
	}
	return true
}

func (s *RegistrationService) finish(span trace.Span, useCase string, err error) {
	defer span.End()
	if err == nil {
		s.metrics.Outcome(useCase, "success")
		return
	}
	kind := KindOf(err)
	result := kind.String()
	span.RecordError(err)
	span.SetStatus(codes.Error, result)
	s.metrics.Outcome(useCase, result)
}

// storeError separates connectivity failures from a store function that ran
// and failed. The latter is a non-success answer for the use case's rejection kind.
func storeError(rejection Kind, err error) error {
	if errors.Is(err, repository.ErrStoreUnavailable) {
		return &Error{Kind: KindStoreUnavailable, Err: err}
	}
	return &Error{Kind: rejection, Status: domain.StatusStoreError, Err: err}
}

// validateRegistration guards in-process callers; the HTTP boundary reports
// every missing field before this is reached.
func validateRegistration(req domain.RegistrationRequest) error {
	fields := []struct {
		name, value string
	}{
		{"first_name", req.FirstName},
		{"last_name", req.LastName},
		{"address", req.Address},
		{"contact_number", req.ContactNumber},
		{"email_address", req.EmailAddress},
		{"vehicle_plate_number", req.VehiclePlateNumber},
		{"vehicle_brand", req.VehicleBrand},
		{"vehicle_model", req.VehicleModel},
		{"username", req.Username},
	}
	for _, f := range fields {
		if f.value == "" {
			return NewValidationError("Missing required property: " + f.name)
		}
	}
	return nil
}

func registrationMessage(fullName, code string) string {
	return "Hi " + fullName + "! Your ParkNcharge registration OTP is " + code + ". Do not share this code with anyone."
}

func verifiedMessage(name, tempPassword string) string {
	return "Hi " + name + ", your ParkNcharge account is now verified. Your temporary password is " +
		tempPassword + ". Please change it after your first login."
}

func resendMessage(name, code string) string {
	return "Hi " + name + ", your new ParkNcharge OTP is " + code + ". Your previous code is no longer valid."
}
