package httpapi

import (
	"net/http"
	"strings"
)

// exemptPaths bypass authentication entirely.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// exemptPrefixes bypass bearer auth for routes with their own
// authorization scheme; signed artifact links carry an HMAC signature
// instead of an API key.
var exemptPrefixes = []string{"/artifacts/"}

// BearerAuthMiddleware validates Bearer tokens against the configured
// API keys. With no keys configured, authentication is disabled.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "missing or malformed authorization header")
				return
			}
			if _, ok := validKeys[auth[len(bearerPrefix):]]; !ok {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func exempt(path string) bool {
	if _, ok := exemptPaths[path]; ok {
		return true
	}
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
