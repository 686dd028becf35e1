package handler

import (
	"context"
	"net/http"

	"github.com/xenking/card-market/internal/domain/identity"
)

// CallerHeader carries the caller-identity token. The trusted identity
// proxy in front of this service verifies the token and injects the
// header; the core only consults it and never validates it.
const CallerHeader = "X-Caller-Identity"

type callerKey struct{}

// CallerFromContext extracts the caller identity stored by Caller.
// It returns the zero ID for unauthenticated requests.
func CallerFromContext(ctx context.Context) identity.ID {
	if id, ok := ctx.Value(callerKey{}).(identity.ID); ok {
		return id
	}
	return ""
}

// Caller is a middleware that resolves the caller identity from the
// request header into the context. A missing or malformed header leaves
// the request unauthenticated; unresolvable callers act as guests.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(CallerHeader)
		if !isValidIdentity(raw) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, identity.ID(raw))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isValidIdentity checks that the token is non-empty, at most 256 bytes,
// and contains only printable ASCII (0x21-0x7E, no spaces).
func isValidIdentity(s string) bool {
	if len(s) == 0 || len(s) > 256 {
		return false
	}
	for i := range len(s) {
		if s[i] <= 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
