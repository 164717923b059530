package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/adaptivenexus/scandoq-chatboat/internal/api"
)

type contextKey string

const (
	OwnerIDKey    contextKey = "owner_id"
	OwnerIDHeader            = "X-Owner-ID"
	maxOwnerIDLen            = 128
)

// OwnerScope reads the owner id injected by the authenticating gateway and
// stores it on the request context. Requests without one are rejected.
func OwnerScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get(OwnerIDHeader))
		if ownerID == "" {
			api.Error(w, http.StatusUnauthorized, "missing owner header")
			return
		}
		if len(ownerID) > maxOwnerIDLen || strings.ContainsAny(ownerID, "/\\\"") {
			api.Error(w, http.StatusBadRequest, "invalid owner id")
			return
		}

		ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetOwnerID(ctx context.Context) string {
	ownerID, _ := ctx.Value(OwnerIDKey).(string)
	return ownerID
}

// WithOwnerID returns a context carrying ownerID, as OwnerScope does.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerIDKey, ownerID)
}
