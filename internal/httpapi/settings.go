package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"formrelay/internal/config"
	"formrelay/internal/model"
)

const maskedPassword = "******"

type mailSettingsPayload struct {
	Enabled    *bool   `json:"enabled,omitempty"`
	Host       *string `json:"host,omitempty"`
	Port       *int    `json:"port,omitempty"`
	Encryption *string `json:"encryption,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	Recipient  *string `json:"recipient,omitempty"`
}

func (s *Server) handleMailSettings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", "Settings storage is not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		val, ok, err := s.store.GetMailSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Server error", err.Error())
			return
		}
		if !ok {
			val = model.MailSettings{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": maskSettings(val)})
	case http.MethodPost:
		var body mailSettingsPayload
		if err := readJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}

		current, _, err := s.store.GetMailSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Server error", err.Error())
			return
		}

		next := current
		if body.Enabled != nil {
			next.Enabled = *body.Enabled
		}
		if body.Host != nil {
			next.Host = strings.TrimSpace(*body.Host)
		}
		if body.Port != nil {
			next.Port = *body.Port
		}
		if body.Encryption != nil {
			enc := strings.TrimSpace(*body.Encryption)
			if enc != "" && enc != config.EncryptionSSL && enc != config.EncryptionStartTLS {
				writeError(w, http.StatusBadRequest, "Invalid request", "encryption must be ssl or starttls")
				return
			}
			next.Encryption = enc
		}
		if body.Username != nil {
			next.Username = strings.TrimSpace(*body.Username)
		}
		if body.Password != nil {
			// The masked placeholder round-trips from the settings UI; only a
			// real value replaces the stored one.
			if pw := strings.TrimSpace(*body.Password); pw != maskedPassword {
				next.Password = pw
			}
		}
		if body.Recipient != nil {
			next.Recipient = strings.TrimSpace(*body.Recipient)
		}

		saved, err := s.store.UpsertMailSettings(r.Context(), next)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Server error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": maskSettings(saved)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use GET or POST for this endpoint")
	}
}

type mailTestPayload struct {
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Encryption string `json:"encryption,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
}

// handleMailTest fires a probe email through the effective settings, with
// optional one-shot overrides from the request body. The SMTP error text is
// surfaced so a misconfiguration can be diagnosed from the settings screen.
func (s *Server) handleMailTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use POST for this endpoint")
		return
	}
	var body mailTestPayload
	if err := readJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	relay, recipient := s.resolveMail(r.Context())
	if v := strings.TrimSpace(body.Host); v != "" {
		relay.Host = v
	}
	if body.Port > 0 {
		relay.Port = body.Port
	}
	if v := strings.TrimSpace(body.Encryption); v != "" {
		relay.SSL = v == config.EncryptionSSL
	}
	if v := strings.TrimSpace(body.Username); v != "" {
		relay.Username = v
	}
	if v := strings.TrimSpace(body.Password); v != "" {
		relay.Password = v
	}
	if v := strings.TrimSpace(body.Recipient); v != "" {
		recipient = v
	}

	probe := model.Submission{
		{Name: "status", Value: "mail relay test"},
		{Name: "environment", Value: s.cfg.Environment},
	}
	if err := s.deliver(r.Context(), relay, recipient, probe); err != nil {
		writeError(w, http.StatusInternalServerError, "Email sending failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Test email sent"})
}

func maskSettings(v model.MailSettings) model.MailSettings {
	if v.Password != "" {
		v.Password = maskedPassword
	}
	return v
}
