// Package sms delivers plain-text OTP messages through the SMS gateway's HTTP API.
package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://messagingsuite.smart.com.ph/cgphttp/servlet/sendmsg"
	DefaultSource  = "ParkNcharge"
	defaultTimeout = 15 * time.Second
)

var (
	// ErrDeliveryFailed is returned for any failed delivery attempt: transport error,
	// timeout, or non-2xx gateway response.
	ErrDeliveryFailed = errors.New("sms: delivery failed")
	// ErrNotConfigured is returned when no API key is set; no request is made.
	ErrNotConfigured = errors.New("sms: API key not configured")
)

// Dispatcher sends one message to one destination. Implementations make exactly
// one attempt and never retry.
type Dispatcher interface {
	Send(ctx context.Context, contactNumber, message string) error
}

// Client sends messages via the gateway's GET sendmsg endpoint.
type Client struct {
	APIKey     string
	BaseURL    string
	Source     string
	HTTPClient *http.Client
}

// NewClient returns a Client using apiKey for the Authorization header. Empty
// baseURL and source fall back to the defaults.
func NewClient(apiKey, baseURL, source string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if source == "" {
		source = DefaultSource
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Source:     source,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Send delivers message to contactNumber. The message text is never included in
// returned errors since it carries the OTP.
func (c *Client) Send(ctx context.Context, contactNumber, message string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", ErrDeliveryFailed, err)
	}
	q := u.Query()
	q.Set("destination", contactNumber)
	q.Set("text", message)
	q.Set("source", c.Source)
	q.Set("sourceNPI", "0")
	q.Set("sourceTON", "5")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Authorization", "Basic "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, which includes the message text.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status=%d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
