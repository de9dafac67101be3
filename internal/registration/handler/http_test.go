package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkncharge/registration/internal/registration/domain"
	"parkncharge/registration/internal/registration/service"
	eventdomain "parkncharge/registration/internal/telemetry/domain"
)

type fakeService struct {
	mu         sync.Mutex
	registered []domain.RegistrationRequest
	checked    []string
	resent     []int64

	registerRes *service.RegisterResult
	checkRes    *service.CheckOTPResult
	resendRes   *service.ResendOTPResult
	err         error
}

func (f *fakeService) Register(ctx context.Context, req domain.RegistrationRequest) (*service.RegisterResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.registerRes, nil
}

func (f *fakeService) CheckOTP(ctx context.Context, userID int64, otp string) (*service.CheckOTPResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, otp)
	if f.err != nil {
		return nil, f.err
	}
	return f.checkRes, nil
}

func (f *fakeService) ResendOTP(ctx context.Context, userID int64) (*service.ResendOTPResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.resendRes, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*eventdomain.Event
}

func (e *recordingEmitter) Emit(ctx context.Context, ev *eventdomain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEmitter) wait(t *testing.T, n int) []*eventdomain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		got := append([]*eventdomain.Event(nil), e.events...)
		e.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type decoded struct {
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestRouter(svc Service, events *recordingEmitter, logs *bytes.Buffer) http.Handler {
	var h *Handler
	if events != nil {
		h = New(svc, zerolog.New(logs), events)
	} else {
		h = New(svc, zerolog.New(logs), nil)
	}
	r := chi.NewRouter()
	r.Route("/registration/api/v1", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, path string, body any) (*httptest.ResponseRecorder, decoded) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/registration/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func validBody() map[string]string {
	return map[string]string{
		"first_name":           "Juan",
		"last_name":            "Dela Cruz",
		"address":              "12 Mabini St, Makati",
		"contact_number":       "09171234567",
		"email_address":        "juan@example.com",
		"vehicle_plate_number": "NCR 4821",
		"vehicle_brand":        "Nissan",
		"vehicle_model":        "Leaf",
		"username":             "juandc",
	}
}

func TestRegister_Success(t *testing.T) {
	svc := &fakeService{registerRes: &service.RegisterResult{Status: "SUCCESS", UserID: 42, OTP: "604213", DeliveryOK: true}}
	events := &recordingEmitter{}
	var logs bytes.Buffer
	h := newTestRouter(svc, events, &logs)

	rec, out := do(t, h, "/register", validBody())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, out.Status)
	assert.Equal(t, "Success", out.Message)
	assert.JSONEq(t, `{"status":"SUCCESS","user_id":42,"delivery_ok":true}`, string(out.Data))
	assert.NotContains(t, rec.Body.String(), "604213", "the OTP is never returned over HTTP")

	require.Len(t, svc.registered, 1)
	assert.Equal(t, "Juan", svc.registered[0].FirstName)
	assert.Equal(t, "juandc", svc.registered[0].Username)

	got := events.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, eventdomain.EventDriverRegistered, got[0].Type)
	assert.Equal(t, int64(42), got[0].UserID)
	require.NotNil(t, got[0].DeliveryOK)
	assert.True(t, *got[0].DeliveryOK)
}

func TestRegister_TrimsAndEscapes(t *testing.T) {
	svc := &fakeService{registerRes: &service.RegisterResult{Status: "SUCCESS", UserID: 1}}
	h := newTestRouter(svc, nil, &bytes.Buffer{})
	body := validBody()
	body["first_name"] = "  Juan  "
	body["address"] = "<b>12 Mabini</b> & Sons"

	rec, _ := do(t, h, "/register", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.registered, 1)
	assert.Equal(t, "Juan", svc.registered[0].FirstName)
	assert.Equal(t, "&lt;b&gt;12 Mabini&lt;/b&gt; &amp; Sons", svc.registered[0].Address)
}

func TestRegister_MissingFields(t *testing.T) {
	for _, field := range []string{"first_name", "last_name", "address", "contact_number", "email_address",
		"vehicle_plate_number", "vehicle_brand", "vehicle_model", "username"} {
		t.Run(field, func(t *testing.T) {
			svc := &fakeService{}
			h := newTestRouter(svc, nil, &bytes.Buffer{})
			body := validBody()
			body[field] = "   "

			rec, out := do(t, h, "/register", body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "Unprocessable Entity", out.Message)
			var fields map[string]string
			require.NoError(t, json.Unmarshal(out.Data, &fields))
			assert.Equal(t, "Missing required property: "+field, fields[field])
			assert.Empty(t, svc.registered, "service must not be called")
		})
	}
}

func TestRegister_TooLong(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil, &bytes.Buffer{})
	body := validBody()
	body["contact_number"] = strings.Repeat("9", 21)

	rec, out := do(t, h, "/register", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, string(out.Data), "contact_number must be at most 20 characters")
}

func TestRegister_InvalidJSON(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil, &bytes.Buffer{})
	rec, out := do(t, h, "/register", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", out.Message)
}

func TestRegister_DoesNotLogPII(t *testing.T) {
	svc := &fakeService{err: &service.Error{Kind: service.KindRegistrationRejected, Status: "DUPLICATE_USERNAME"}}
	var logs bytes.Buffer
	h := newTestRouter(svc, nil, &logs)

	do(t, h, "/register", validBody())
	assert.NotContains(t, logs.String(), "09171234567")
	assert.NotContains(t, logs.String(), "juan@example.com")
}

func TestServiceErrorMapping(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"rejected", &service.Error{Kind: service.KindRegistrationRejected, Status: "DUPLICATE_USERNAME"}, 400, "DUPLICATE_USERNAME"},
		{"validation", service.NewValidationError("bad"), 422, "Unprocessable Entity"},
		{"crypto", &service.Error{Kind: service.KindCrypto, Err: errors.New("auth failed")}, 500, "Internal Server Error"},
		{"store unavailable", &service.Error{Kind: service.KindStoreUnavailable, Err: errors.New("dial")}, 503, "Service Unavailable"},
		{"store function failed", &service.Error{Kind: service.KindRegistrationRejected, Status: "STORE_ERROR"}, 500, "Internal Server Error"},
		{"otp check failed in store", &service.Error{Kind: service.KindOTPVerificationFailed, Status: "STORE_ERROR"}, 500, "Internal Server Error"},
		{"untyped", errors.New("boom"), 500, "Internal Server Error"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			events := &recordingEmitter{}
			h := newTestRouter(&fakeService{err: tc.err}, events, &bytes.Buffer{})

			rec, out := do(t, h, "/register", validBody())
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.code, out.Status)
			assert.Equal(t, tc.message, out.Message)
			assert.JSONEq(t, `[]`, string(out.Data))

			got := events.wait(t, 1)
			require.Len(t, got, 1)
			assert.Equal(t, eventdomain.EventRegistrationFail, got[0].Type)
		})
	}
}

func TestCheckOTP(t *testing.T) {
	svc := &fakeService{checkRes: &service.CheckOTPResult{Status: "SUCCESS", DeliveryOK: false}}
	h := newTestRouter(svc, nil, &bytes.Buffer{})

	rec, out := do(t, h, "/otp/verify", map[string]any{"user_id": 42, "otp": " 604213 "})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"SUCCESS","delivery_ok":false}`, string(out.Data))
	assert.Equal(t, []string{"604213"}, svc.checked)
}

func TestCheckOTP_Validation(t *testing.T) {
	testCases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing user", map[string]any{"otp": "604213"}, "user_id"},
		{"negative user", map[string]any{"user_id": -1, "otp": "604213"}, "user_id"},
		{"missing otp", map[string]any{"user_id": 42}, "otp"},
		{"short otp", map[string]any{"user_id": 42, "otp": "123"}, "otp"},
		{"letters", map[string]any{"user_id": 42, "otp": "12a456"}, "otp"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{}
			h := newTestRouter(svc, nil, &bytes.Buffer{})
			rec, out := do(t, h, "/otp/verify", tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, string(out.Data), tc.field)
			assert.Empty(t, svc.checked)
		})
	}
}

func TestCheckOTP_Rejected(t *testing.T) {
	svc := &fakeService{err: &service.Error{Kind: service.KindOTPVerificationFailed, Status: "OTP_EXPIRED"}}
	h := newTestRouter(svc, nil, &bytes.Buffer{})

	rec, out := do(t, h, "/otp/verify", map[string]any{"user_id": 42, "otp": "604213"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OTP_EXPIRED", out.Message)
}

func TestResendOTP(t *testing.T) {
	svc := &fakeService{resendRes: &service.ResendOTPResult{Status: "SUCCESS", DeliveryOK: true}}
	events := &recordingEmitter{}
	h := newTestRouter(svc, events, &bytes.Buffer{})

	rec, out := do(t, h, "/otp/resend", map[string]any{"user_id": 7})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"SUCCESS","delivery_ok":true}`, string(out.Data))
	assert.Equal(t, []int64{7}, svc.resent)

	got := events.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, eventdomain.EventOTPReissued, got[0].Type)
	assert.Equal(t, int64(7), got[0].UserID)
}

func TestResendOTP_AlreadyVerified(t *testing.T) {
	svc := &fakeService{err: &service.Error{Kind: service.KindOTPReissueFailed, Status: "ALREADY_VERIFIED"}}
	h := newTestRouter(svc, nil, &bytes.Buffer{})

	rec, out := do(t, h, "/otp/resend", map[string]any{"user_id": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ALREADY_VERIFIED", out.Message)
}
