package middleware

import (
	"net/http"
	"strings"
)

// MaxBody caps request bodies. Multipart uploads get uploadMax, everything
// else jsonMax.
func MaxBody(jsonMax, uploadMax int64) func(http.Handler) http.Handler {
	if jsonMax <= 0 {
		jsonMax = 1 << 20
	}
	if uploadMax <= 0 {
		uploadMax = 10 << 20
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := jsonMax
			if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/") {
				limit = uploadMax
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
