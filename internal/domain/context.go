package domain

import "context"

type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeySessionID contextKey = "session_id"
	ctxKeyUserEmail contextKey = "user_email"
)

// WithRequestID returns a context carrying the gateway request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom extracts the request ID, or "" when absent.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// WithSessionID returns a context carrying the conversation session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// SessionIDFrom extracts the session ID, or "" when absent.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeySessionID).(string)
	return id
}

// WithUserEmail returns a context carrying the authenticated user.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKeyUserEmail, email)
}

// UserEmailFrom extracts the authenticated user's email, or "".
func UserEmailFrom(ctx context.Context) string {
	email, _ := ctx.Value(ctxKeyUserEmail).(string)
	return email
}
