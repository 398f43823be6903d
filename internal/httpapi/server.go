package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"formrelay/internal/config"
	"formrelay/internal/logbus"
	"formrelay/internal/mailer"
	"formrelay/internal/model"
	"formrelay/internal/ratelimit"
	"formrelay/internal/store/sqlite"
	"formrelay/internal/ws"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Cfg     config.Config
	Bus     *logbus.Bus
	Store   *sqlite.Store
	Sender  mailer.Sender
	Limiter *ratelimit.Limiter
}

type Server struct {
	cfg     config.Config
	bus     *logbus.Bus
	store   *sqlite.Store
	sender  mailer.Sender
	limiter *ratelimit.Limiter
	global  *rate.Limiter
	ws      *ws.Handler
}

func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Cfg,
		bus:     opts.Bus,
		store:   opts.Store,
		sender:  opts.Sender,
		limiter: opts.Limiter,
		ws:      ws.NewHandler(opts.Bus, opts.Cfg.Server.Cors),
	}
	if opts.Cfg.Limits.GlobalQPS > 0 {
		s.global = rate.NewLimiter(rate.Limit(opts.Cfg.Limits.GlobalQPS), opts.Cfg.Limits.GlobalBurst)
	}
	return s
}

func (s *Server) logf(level, msg string, fields map[string]any) {
	if s.bus != nil {
		s.bus.Log(level, msg, fields)
	}
}

func (s *Server) Handler() http.Handler {
	submit := s.requireToken(s.rateLimit(s.handleSubmitForm))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)
	// Bare-path alias kept for clients of the older deployment.
	mux.Handle("/submit-form", corsMiddleware(s.cfg.Server.Cors, http.HandlerFunc(submit)))

	api := http.NewServeMux()
	api.HandleFunc("/api/ping", s.handlePing)
	api.HandleFunc("/api/submit-form", submit)
	api.HandleFunc("/api/forward-email", s.requireToken(s.handleForwardEmail))
	api.HandleFunc("/api/v1/settings/email", s.requireToken(s.handleMailSettings))
	api.HandleFunc("/api/v1/settings/email/test", s.requireToken(s.handleMailTest))
	mux.Handle("/api/", corsMiddleware(s.cfg.Server.Cors, api))

	return s.recoverPanics(s.globalLimit(mux))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use GET for this endpoint")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.cfg.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use GET for this endpoint")
		return
	}
	relay, _ := s.resolveMail(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"email_configured": relay.Username != "" && relay.Password != "",
	})
}

func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use POST for this endpoint")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	sub, err := decodeSubmission(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if sub.Empty() {
		writeError(w, http.StatusBadRequest, "No data provided", "Please provide form data")
		return
	}

	id := uuid.NewString()
	s.logf("info", "form submission received", map[string]any{
		"id":     id,
		"remote": clientIP(r, s.cfg.Server.TrustProxy),
		"fields": len(sub),
	})

	relay, recipient := s.resolveMail(r.Context())
	if forward := strings.TrimSpace(r.Header.Get("X-Forward-Email")); forward != "" {
		recipient = forward
	}

	if err := s.deliver(r.Context(), relay, recipient, sub); err != nil {
		s.logf("error", "email sending failed", map[string]any{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Email sending failed", "Form submitted but notification email failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Form submitted successfully",
	})
}

type forwardEmailPayload struct {
	FormData json.RawMessage `json:"form_data"`
	Email    string          `json:"email"`
}

// handleForwardEmail relays to an explicitly named destination. No rate limit
// on this path.
func (s *Server) handleForwardEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use POST for this endpoint")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body forwardEmailPayload
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Please provide form_data and email")
		return
	}
	dest := strings.TrimSpace(body.Email)
	if len(body.FormData) == 0 || dest == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "Please provide form_data and email")
		return
	}
	if _, err := mail.ParseAddress(dest); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "email is not a valid address")
		return
	}
	sub, err := model.ParseSubmissionJSON(body.FormData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if sub.Empty() {
		writeError(w, http.StatusBadRequest, "Invalid request", "form_data must not be empty")
		return
	}

	id := uuid.NewString()
	s.logf("info", "forward request received", map[string]any{
		"id":     id,
		"remote": clientIP(r, s.cfg.Server.TrustProxy),
		"to":     dest,
	})

	relay, _ := s.resolveMail(r.Context())
	if err := s.deliver(r.Context(), relay, dest, sub); err != nil {
		s.logf("error", "email forwarding failed", map[string]any{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Email forwarding failed", "Failed to forward email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email forwarded successfully",
	})
}

func (s *Server) deliver(ctx context.Context, relay mailer.Relay, recipient string, sub model.Submission) error {
	textBody, htmlBody, err := mailer.RenderSubmission(s.cfg.Mail.Subject, sub)
	if err != nil {
		return err
	}
	msg := mailer.Message{
		From:     relay.Username,
		To:       recipient,
		Subject:  s.cfg.Mail.Subject,
		TextBody: textBody,
	}
	if s.cfg.Mail.BodyFormat == config.BodyFormatHTML {
		msg.HTMLBody = htmlBody
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Mail.Timeout())
	defer cancel()
	return s.sender.Send(sendCtx, relay, msg)
}

// resolveMail combines the static mail config with the persisted settings:
// when stored settings exist and are enabled, their non-empty fields win.
func (s *Server) resolveMail(ctx context.Context) (mailer.Relay, string) {
	relay := mailer.Relay{
		Host:     s.cfg.Mail.Host,
		Port:     s.cfg.Mail.Port,
		SSL:      s.cfg.Mail.Encryption == config.EncryptionSSL,
		Username: s.cfg.Mail.Username,
		Password: s.cfg.Mail.Password,
	}
	recipient := s.cfg.Mail.Recipient

	if s.store != nil {
		ms, ok, err := s.store.GetMailSettings(ctx)
		if err != nil {
			s.logf("warn", "failed to read mail settings", map[string]any{"error": err.Error()})
		} else if ok && ms.Enabled {
			if ms.Host != "" {
				relay.Host = ms.Host
			}
			if ms.Port > 0 {
				relay.Port = ms.Port
			}
			if ms.Encryption != "" {
				relay.SSL = ms.Encryption == config.EncryptionSSL
			}
			if ms.Username != "" {
				relay.Username = ms.Username
			}
			if ms.Password != "" {
				relay.Password = ms.Password
			}
			if ms.Recipient != "" {
				recipient = ms.Recipient
			}
		}
	}

	if strings.TrimSpace(recipient) == "" {
		recipient = relay.Username
	}
	return relay, recipient
}

func decodeSubmission(r *http.Request) (model.Submission, error) {
	mediatype, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediatype == "application/x-www-form-urlencoded":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return model.ParseSubmissionForm(string(body))
	case mediatype == "multipart/form-data":
		return decodeMultipart(r, params["boundary"])
	default:
		// JSON is the default wire format, matching clients that omit the
		// Content-Type header.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, nil
		}
		return model.ParseSubmissionJSON(body)
	}
}

func decodeMultipart(r *http.Request, boundary string) (model.Submission, error) {
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}
	mr := multipart.NewReader(r.Body, boundary)
	var sub model.Submission
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if part.FileName() != "" || part.FormName() == "" {
			// File uploads are not relayed.
			_ = part.Close()
			continue
		}
		val, err := io.ReadAll(io.LimitReader(part, maxBodyBytes))
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		sub = append(sub, model.Field{Name: part.FormName(), Value: string(val)})
	}
	return sub, nil
}
