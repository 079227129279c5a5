package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

// BearerTokenKey is the context key for the inbound bearer token.
const BearerTokenKey contextKey = "bearer_token"

// ExtractBearer returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
func ExtractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// RequireBearer rejects requests without a bearer token with 401 and stores
// the token in the request context otherwise. The token is not validated;
// it is forwarded upstream as the caller's credential.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearer(r)
		if token == "" {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="aiagent-relay"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), BearerTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetBearerToken retrieves the token stored by RequireBearer.
func GetBearerToken(ctx context.Context) string {
	if v, ok := ctx.Value(BearerTokenKey).(string); ok {
		return v
	}
	return ""
}
