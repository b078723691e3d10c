package middleware

import (
	"context"
	"net/http"

	"anomalyguard/backend/internal/geo"
)

type contextKey struct{ name string }

var (
	userIDKey      = contextKey{"user_id"}
	requestMetaKey = contextKey{"request_meta"}
)

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

// WithRequestMeta stores the client signals the resolver needs.
func WithRequestMeta(ctx context.Context, meta geo.RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey, meta)
}

// GetRequestMeta returns the RequestMeta captured by ClientMeta, if any.
func GetRequestMeta(ctx context.Context) (geo.RequestMeta, bool) {
	v, ok := ctx.Value(requestMetaKey).(geo.RequestMeta)
	return v, ok
}

// MetaFromRequest extracts the fingerprint and geolocation inputs from r.
func MetaFromRequest(r *http.Request) geo.RequestMeta {
	return geo.RequestMeta{
		RemoteAddr:     r.RemoteAddr,
		XForwardedFor:  r.Header.Get("X-Forwarded-For"),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		SecCHUA:        r.Header.Get("Sec-CH-UA"),
	}
}

// ClientMeta captures request metadata into the context once so handlers and
// audit share the same view of the client.
func ClientMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequestMeta(r.Context(), MetaFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
