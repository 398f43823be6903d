package config

import "strings"

// MatchOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed. Entries may be "*", an exact origin, or a
// host-port pattern such as "http://localhost:*" for local development.
func (c CorsConfig) MatchOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	for _, o := range c.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
		if prefix, ok := strings.CutSuffix(o, ":*"); ok {
			if port, found := strings.CutPrefix(origin, prefix+":"); found && isPort(port) {
				return origin
			}
		}
	}
	return ""
}

func (c CorsConfig) OriginAllowed(origin string) bool {
	return c.MatchOrigin(origin) != ""
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
