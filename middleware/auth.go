package middleware

import (
	"net/http"

	"github.com/GabeYou/Hack-The-Valley-2025/utils"
)

// Auth requires a valid token from the "token" cookie or a Bearer header and
// puts the caller's identity in the request context.
func Auth(codec *utils.TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := utils.TokenFromRequest(r)
			if tokenStr == "" {
				utils.WriteError(w, utils.ErrUnauthorized("Missing or invalid token"))
				return
			}
			claims, err := codec.Validate(r.Context(), tokenStr)
			if err != nil {
				utils.WriteError(w, utils.ErrUnauthorized("Invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(utils.WithUser(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalAuth(codec *utils.TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr := utils.TokenFromRequest(r); tokenStr != "" {
				if claims, err := codec.Validate(r.Context(), tokenStr); err == nil {
					r = r.WithContext(utils.WithUser(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
