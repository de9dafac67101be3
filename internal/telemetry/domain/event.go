// Package domain defines registration lifecycle events published to the event bus.
package domain

import (
	"strconv"
	"time"
)

// Event types.
const (
	EventDriverRegistered  = "driver.registered"
	EventRegistrationOTPOK = "driver.otp_verified"
	EventOTPReissued       = "driver.otp_reissued"
	EventRegistrationFail  = "driver.registration_failed"
)

// Event is a registration lifecycle event. It never carries OTPs, temporary
// passwords, or PII; consumers look the driver up by UserID.
type Event struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id,omitempty"`
	Status     string    `json:"status"`
	DeliveryOK *bool     `json:"delivery_ok,omitempty"`
	Client     string    `json:"client,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key returns the partition key: the user id when known, so one driver's events stay ordered.
func (e *Event) Key() []byte {
	if e == nil || e.UserID == 0 {
		return nil
	}
	return strconv.AppendInt(nil, e.UserID, 10)
}
