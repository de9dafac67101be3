package sms

import (
	"context"

	"github.com/rs/zerolog"

	"parkncharge/registration/internal/logging"
)

// LogDispatcher is a development Dispatcher that records the masked destination
// and drops the message. Send always returns ErrNotConfigured, so callers report
// the message as undelivered. Never used when APP_ENV=production.
type LogDispatcher struct {
	Logger zerolog.Logger
}

func (d LogDispatcher) Send(ctx context.Context, contactNumber, message string) error {
	d.Logger.Info().
		Str("destination", logging.MaskPhone(contactNumber)).
		Int("message_length", len(message)).
		Msg("sms: gateway not configured, message dropped")
	return ErrNotConfigured
}
