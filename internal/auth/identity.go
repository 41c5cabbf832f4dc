package auth

import (
	"context"
	"net/http"
	"strings"

	"campcart/internal/domain"
)

// Headers set by the upstream auth layer.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserPhone = "X-User-Phone"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext returns nil for unauthenticated requests.
func FromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(contextKey{}).(*domain.Identity)
	return identity
}

// Middleware attaches the caller identity when X-User-ID is present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity := &domain.Identity{
			UserID: userID,
			Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
			Name:   strings.TrimSpace(r.Header.Get(HeaderUserName)),
			Phone:  strings.TrimSpace(r.Header.Get(HeaderUserPhone)),
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
