package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// rateLimit throttles per client address. The limiter refreshes the recorded
// timestamp even for rejected attempts, so hammering the endpoint keeps the
// client throttled until it backs off for a full interval.
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next(w, r)
			return
		}
		id := clientIP(r, s.cfg.Server.TrustProxy)
		admitted, wait := s.limiter.Allow(id, time.Now())
		if !admitted {
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":        "Too many requests",
				"message":      fmt.Sprintf("Please wait %d seconds between submissions", int(s.limiter.Interval().Seconds())),
				"retryAfterMs": wait.Milliseconds(),
			})
			return
		}
		next(w, r)
	}
}

// globalLimit is an optional whole-service QPS gate, separate from the
// per-client interval limiter. Disabled unless limits.globalQPS is set.
func (s *Server) globalLimit(next http.Handler) http.Handler {
	if s.global == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.global.Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many requests", "The server is handling too much traffic, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanics is the outermost stage: nothing propagates past the handler
// boundary uncaught. Detail goes to the log only, never to the response.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logf("error", "panic recovered", map[string]any{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(rec),
				})
				writeError(w, http.StatusInternalServerError, "Server error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
