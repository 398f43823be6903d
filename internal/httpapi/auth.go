package httpapi

import (
	"net/http"
	"strings"

	"formrelay/internal/config"
)

// requireToken gates a handler on the configured shared secret. In bearer
// mode a missing credential (401) is distinguished from a mismatching one
// (403); in apikey mode both collapse into a single 401, matching clients
// that only know "key rejected".
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch s.cfg.Auth.Mode {
		case config.AuthModeAPIKey:
			key := strings.TrimSpace(r.Header.Get(s.cfg.Auth.HeaderName()))
			if key == "" || key != s.cfg.Auth.Token {
				writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "A valid API key is required")
				return
			}
		default:
			raw := strings.TrimSpace(r.Header.Get(s.cfg.Auth.HeaderName()))
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "No token provided", "Authorization token is required")
				return
			}
			if stripBearer(raw) != s.cfg.Auth.Token {
				writeError(w, http.StatusForbidden, "Invalid token", "The provided token is invalid")
				return
			}
		}
		next(w, r)
	}
}

func stripBearer(v string) string {
	if len(v) >= 7 && strings.EqualFold(v[:7], "Bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}
