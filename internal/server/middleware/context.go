package middleware

import "context"

type contextKey struct{ name string }

var clientKey = contextKey{"api_client"}

// WithClient returns a context carrying the authenticated API client's subject.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// ClientFromContext returns the authenticated API client, or "" when the request was not authenticated.
func ClientFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientKey).(string)
	return v
}
