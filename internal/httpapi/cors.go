package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"formrelay/internal/config"
)

// corsMiddleware enforces the origin policy before any handler runs: a
// request from a disallowed origin is rejected here and never reaches the
// handlers. Requests without an Origin header (curl, server-to-server) pass
// through untouched.
func corsMiddleware(cfg config.CorsConfig, next http.Handler) http.Handler {
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	allowMethods := strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	maxAge := 600

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			allowed := cfg.MatchOrigin(origin)
			if allowed == "" {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				writeError(w, http.StatusForbidden, "Origin not allowed", "Requests from this origin are not permitted")
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
