package core

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// RequestIDKey is a custom context key type for storing the request ID in context.
type RequestIDKey struct{}

// SessionKey is a custom context key type for storing the SessionProvider in context.
type SessionKey struct{}

// WithRequestID returns a new context with a generated request ID set.
func WithRequestID(ctx context.Context) context.Context {
	reqID := uuid.New().String()
	return context.WithValue(ctx, RequestIDKey{}, reqID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	reqID, _ := ctx.Value(RequestIDKey{}).(string)
	return reqID
}

// LoggerFromCtx returns a slog.Logger with request_id field if present in context.
// If no request ID is found, it returns the default logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return slog.Default().With("request_id", reqID)
	}
	return slog.Default()
}

// SessionProvider is the part of the session manager that front-ends consume.
type SessionProvider interface {
	Session() (Session, bool)
	StartLogin(ctx context.Context) (AuthorizationURL, error)
	Logout()
	FetchProfile(ctx context.Context) (*Profile, error)
	FetchBestScores(ctx context.Context, mode string, mods []string) ([]ScoreEntry, error)
	LookupUser(ctx context.Context, username, mode string) (*Profile, error)
}

// WithSession returns a new context with the provided SessionProvider set.
func WithSession(ctx context.Context, sp SessionProvider) context.Context {
	return context.WithValue(ctx, SessionKey{}, sp)
}

// SessionFromContext retrieves the SessionProvider from the context.
func SessionFromContext(ctx context.Context) (SessionProvider, error) {
	sp, ok := ctx.Value(SessionKey{}).(SessionProvider)
	if !ok || sp == nil {
		return nil, NotAuthenticated("missing session manager")
	}
	return sp, nil
}

// NewState returns a fresh opaque value for the OAuth state parameter.
func NewState() string {
	return uuid.NewString()
}
