package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth rejects requests that do not present apiKey, either as
// "Authorization: Bearer <key>" or in X-API-Key. An empty apiKey disables
// the check; paths listed in public are always served.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			switch token := extractToken(r); {
			case token == "":
				w.Header().Set("WWW-Authenticate", `Bearer realm="tickerbot"`)
				writeError(w, http.StatusUnauthorized, "missing authentication token")
			case subtle.ConstantTimeCompare([]byte(token), want) != 1:
				writeError(w, http.StatusUnauthorized, "invalid authentication token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func extractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeError mirrors the handler package's {"error": msg} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
