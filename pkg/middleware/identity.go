package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/httputil"
)

// Headers set by the upstream gateway after it has authenticated the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

type identityKey struct{}

// Caller is the authenticated user on whose behalf a request is made.
type Caller struct {
	UserID   string
	Username string
}

// Identity reads the gateway identity headers into the request context.
// Requests without X-User-ID pass through anonymously.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller := Caller{
			UserID:   userID,
			Username: strings.TrimSpace(r.Header.Get(HeaderUsername)),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, caller)))
	})
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CallerFromContext(r.Context()); !ok {
			httputil.WriteError(w, r, apperrors.Unauthorized("missing caller identity"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerFromContext returns the caller stored by Identity.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(identityKey{}).(Caller)
	return c, ok
}
