// Package handler exposes the registration use cases over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"parkncharge/registration/internal/registration/domain"
	"parkncharge/registration/internal/registration/service"
	"parkncharge/registration/internal/server/middleware"
	"parkncharge/registration/internal/telemetry"
	eventdomain "parkncharge/registration/internal/telemetry/domain"
)

// Service is the registration orchestrator. *service.RegistrationService implements it.
type Service interface {
	Register(ctx context.Context, req domain.RegistrationRequest) (*service.RegisterResult, error)
	CheckOTP(ctx context.Context, userID int64, otp string) (*service.CheckOTPResult, error)
	ResendOTP(ctx context.Context, userID int64) (*service.ResendOTPResult, error)
}

// Handler serves the registration API.
type Handler struct {
	svc      Service
	log      zerolog.Logger
	validate *validator.Validate
	events   telemetry.EventEmitter
	now      func() time.Time
}

// New returns a Handler. events may be nil to disable registration events.
func New(svc Service, log zerolog.Logger, events telemetry.EventEmitter) *Handler {
	return &Handler{
		svc:      svc,
		log:      log.With().Str("component", "registration_http").Logger(),
		validate: newValidator(),
		events:   events,
		now:      time.Now,
	}
}

// Routes mounts the registration endpoints on r. Authentication is applied by the caller.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/otp/verify", h.handleCheckOTP)
	r.Post("/otp/resend", h.handleResendOTP)
}

type registerRequest struct {
	FirstName          string `json:"first_name" validate:"required,max=100"`
	LastName           string `json:"last_name" validate:"required,max=100"`
	Address            string `json:"address" validate:"required,max=255"`
	ContactNumber      string `json:"contact_number" validate:"required,max=20"`
	EmailAddress       string `json:"email_address" validate:"required,max=255"`
	VehiclePlateNumber string `json:"vehicle_plate_number" validate:"required,max=20"`
	VehicleBrand       string `json:"vehicle_brand" validate:"required,max=100"`
	VehicleModel       string `json:"vehicle_model" validate:"required,max=100"`
	Username           string `json:"username" validate:"required,max=100"`
}

// sanitize trims and HTML-escapes every field, in that order.
func (r *registerRequest) sanitize() {
	for _, f := range []*string{
		&r.FirstName, &r.LastName, &r.Address, &r.ContactNumber, &r.EmailAddress,
		&r.VehiclePlateNumber, &r.VehicleBrand, &r.VehicleModel, &r.Username,
	} {
		*f = html.EscapeString(strings.TrimSpace(*f))
	}
}

func (r *registerRequest) toDomain() domain.RegistrationRequest {
	return domain.RegistrationRequest{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Address:            r.Address,
		ContactNumber:      r.ContactNumber,
		EmailAddress:       r.EmailAddress,
		VehiclePlateNumber: r.VehiclePlateNumber,
		VehicleBrand:       r.VehicleBrand,
		VehicleModel:       r.VehicleModel,
		Username:           r.Username,
	}
}

type checkOTPRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	OTP    string `json:"otp" validate:"required,len=6,numeric"`
}

type resendOTPRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type registerData struct {
	Status     string `json:"status"`
	UserID     int64  `json:"user_id"`
	DeliveryOK bool   `json:"delivery_ok"`
}

type otpData struct {
	Status     string `json:"status"`
	DeliveryOK bool   `json:"delivery_ok"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.bind(w, r, &req) {
		return
	}
	req.sanitize()
	if !h.check(w, r, &req) {
		return
	}

	res, err := h.svc.Register(r.Context(), req.toDomain())
	if err != nil {
		h.emit(r, eventdomain.EventRegistrationFail, 0, err, nil)
		h.writeServiceError(w, r, "register", err)
		return
	}
	h.emit(r, eventdomain.EventDriverRegistered, res.UserID, nil, &res.DeliveryOK)
	writeSuccess(w, registerData{Status: res.Status, UserID: res.UserID, DeliveryOK: res.DeliveryOK})
}

func (h *Handler) handleCheckOTP(w http.ResponseWriter, r *http.Request) {
	var req checkOTPRequest
	if !h.bind(w, r, &req) {
		return
	}
	req.OTP = strings.TrimSpace(req.OTP)
	if !h.check(w, r, &req) {
		return
	}

	res, err := h.svc.CheckOTP(r.Context(), req.UserID, req.OTP)
	if err != nil {
		h.writeServiceError(w, r, "check_otp", err)
		return
	}
	h.emit(r, eventdomain.EventRegistrationOTPOK, req.UserID, nil, &res.DeliveryOK)
	writeSuccess(w, otpData{Status: res.Status, DeliveryOK: res.DeliveryOK})
}

func (h *Handler) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if !h.bind(w, r, &req) {
		return
	}
	if !h.check(w, r, &req) {
		return
	}

	res, err := h.svc.ResendOTP(r.Context(), req.UserID)
	if err != nil {
		h.writeServiceError(w, r, "resend_otp", err)
		return
	}
	h.emit(r, eventdomain.EventOTPReissued, req.UserID, nil, &res.DeliveryOK)
	writeSuccess(w, otpData{Status: res.Status, DeliveryOK: res.DeliveryOK})
}

// bind decodes the JSON body into dst. The raw body is never logged; it carries PII.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		h.log.Warn().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("invalid request body")
		writeEnvelope(w, http.StatusBadRequest, []any{}, "Invalid request body")
		return false
	}
	return true
}

// check validates dst and writes a 422 with per-field messages on failure.
func (h *Handler) check(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	fields := translateValidationError(err)
	h.log.Info().Str("request_id", chimw.GetReqID(r.Context())).Str("path", r.URL.Path).Interface("fields", keys(fields)).Msg("request validation failed")
	writeEnvelope(w, http.StatusUnprocessableEntity, fields, "Unprocessable Entity")
	return false
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, msg := statusFor(err)
	ev := h.log.Warn()
	if code >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).
		Str("op", op).
		Str("request_id", chimw.GetReqID(r.Context())).
		Int("status", code).
		Msg("registration request failed")
	writeEnvelope(w, code, []any{}, msg)
}

// statusFor maps a service error to the HTTP status and the client-facing message.
// Rejections surface the store's business status, as the mobile app branches on it.
func statusFor(err error) (int, string) {
	var se *service.Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, "Internal Server Error"
	}
	switch se.Kind {
	case service.KindValidation:
		return http.StatusUnprocessableEntity, "Unprocessable Entity"
	case service.KindRegistrationRejected, service.KindOTPVerificationFailed, service.KindOTPReissueFailed:
		if se.Status == domain.StatusStoreError {
			return http.StatusInternalServerError, "Internal Server Error"
		}
		return http.StatusBadRequest, se.Status
	case service.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "Service Unavailable"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func (h *Handler) emit(r *http.Request, typ string, userID int64, err error, deliveryOK *bool) {
	if h.events == nil {
		return
	}
	ev := &eventdomain.Event{
		Type:       typ,
		UserID:     userID,
		Status:     domain.StatusSuccess,
		DeliveryOK: deliveryOK,
		Client:     middleware.ClientFromContext(r.Context()),
		RequestID:  chimw.GetReqID(r.Context()),
		OccurredAt: h.now().UTC(),
	}
	if err != nil {
		var se *service.Error
		ev.Status = "ERROR"
		if errors.As(err, &se) && se.Status != "" {
			ev.Status = se.Status
		}
	}
	telemetry.EmitAsync(h.events, h.log, ev)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// translateValidationError turns validator errors into field -> message.
func translateValidationError(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range ve {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out[field] = "Missing required property: " + field
		case "max":
			out[field] = field + " must be at most " + fe.Param() + " characters"
		case "len":
			out[field] = field + " must be exactly " + fe.Param() + " characters"
		case "numeric":
			out[field] = field + " must contain only numbers"
		case "gt":
			out[field] = field + " must be greater than " + fe.Param()
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
