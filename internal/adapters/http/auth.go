package httpadapter

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const protectedPrefix = "/v1/"

// apiKeyMiddleware requires "Authorization: Bearer <key>" on /v1/* routes.
// Health and metrics stay open. An empty key disables the check.
func apiKeyMiddleware(next http.Handler, key string, onReject func(string)) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, protectedPrefix) || isAuthorizedBearerHeader(r.Header.Get("Authorization"), key) {
			next.ServeHTTP(w, r)
			return
		}
		if onReject != nil {
			onReject("unauthorized")
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="legal-assistant"`)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}
