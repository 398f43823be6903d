package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig  `yaml:"server"`
	Auth        AuthConfig    `yaml:"auth"`
	Limits      LimitsConfig  `yaml:"limits"`
	Mail        MailConfig    `yaml:"mail"`
	Storage     StorageConfig `yaml:"storage"`
	Version     string        `yaml:"version"`
	Environment string        `yaml:"environment"`
}

type ServerConfig struct {
	Addr       string     `yaml:"addr"`
	Cors       CorsConfig `yaml:"cors"`
	TrustProxy bool       `yaml:"trustProxy"`
}

type CorsConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins"`
	AllowHeaders     []string `yaml:"allowHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

// AuthModeBearer reads the credential from the Authorization header with an
// optional "Bearer " prefix and distinguishes missing (401) from invalid (403).
// AuthModeAPIKey reads a dedicated header and folds both cases into 401.
const (
	AuthModeBearer = "bearer"
	AuthModeAPIKey = "apikey"
)

type AuthConfig struct {
	Mode   string `yaml:"mode"`
	Token  string `yaml:"token"`
	Header string `yaml:"header"`
}

// HeaderName is the request header carrying the credential for the
// configured mode, unless overridden.
func (c AuthConfig) HeaderName() string {
	if h := strings.TrimSpace(c.Header); h != "" {
		return h
	}
	if c.Mode == AuthModeAPIKey {
		return "X-API-Key"
	}
	return "Authorization"
}

type LimitsConfig struct {
	SubmitIntervalMs int     `yaml:"submitIntervalMs"`
	MaxClients       int     `yaml:"maxClients"`
	GlobalQPS        float64 `yaml:"globalQPS"`
	GlobalBurst      int     `yaml:"globalBurst"`
}

func (c LimitsConfig) SubmitInterval() time.Duration {
	if c.SubmitIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(c.SubmitIntervalMs) * time.Millisecond
}

const (
	EncryptionSSL      = "ssl"
	EncryptionStartTLS = "starttls"
)

const (
	BodyFormatHTML = "html"
	BodyFormatText = "text"
)

type MailConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Encryption string `yaml:"encryption"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Recipient  string `yaml:"recipient"`
	Subject    string `yaml:"subject"`
	BodyFormat string `yaml:"bodyFormat"`
	TimeoutMs  int    `yaml:"timeoutMs"`
}

func (c MailConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets secrets and deploy-specific values override the file, so the
// yaml can be committed without credentials.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_API_TOKEN")); v != "" {
		c.Auth.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_SMTP_USERNAME")); v != "" {
		c.Mail.Username = v
	}
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_SMTP_PASSWORD")); v != "" {
		c.Mail.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_RECIPIENT")); v != "" {
		c.Mail.Recipient = v
	}
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.Cors.AllowOrigins = origins
	}
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("FORMRELAY_ENVIRONMENT")); v != "" {
		c.Environment = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.Cors.AllowHeaders) == 0 {
		c.Server.Cors.AllowHeaders = []string{"Content-Type", "Authorization", "X-API-Key", "X-Forward-Email"}
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeBearer
	}
	if c.Limits.SubmitIntervalMs <= 0 {
		c.Limits.SubmitIntervalMs = 1000
	}
	if c.Limits.MaxClients <= 0 {
		c.Limits.MaxClients = 10000
	}
	if c.Limits.GlobalQPS > 0 && c.Limits.GlobalBurst <= 0 {
		c.Limits.GlobalBurst = 10
	}
	if c.Mail.Host == "" {
		c.Mail.Host = "smtp.gmail.com"
	}
	if c.Mail.Port <= 0 {
		c.Mail.Port = 465
	}
	if c.Mail.Encryption == "" {
		if c.Mail.Port == 465 {
			c.Mail.Encryption = EncryptionSSL
		} else {
			c.Mail.Encryption = EncryptionStartTLS
		}
	}
	if c.Mail.Subject == "" {
		c.Mail.Subject = "New Form Submission"
	}
	if c.Mail.BodyFormat == "" {
		c.Mail.BodyFormat = BodyFormatHTML
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Environment == "" {
		c.Environment = "production"
	}
}

func (c Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if strings.TrimSpace(c.Auth.Token) == "" {
		return errors.New("auth.token is required")
	}
	switch c.Auth.Mode {
	case AuthModeBearer, AuthModeAPIKey:
	default:
		return fmt.Errorf("auth.mode %q is not supported", c.Auth.Mode)
	}
	switch c.Mail.Encryption {
	case EncryptionSSL, EncryptionStartTLS:
	default:
		return fmt.Errorf("mail.encryption %q is not supported", c.Mail.Encryption)
	}
	switch c.Mail.BodyFormat {
	case BodyFormatHTML, BodyFormatText:
	default:
		return fmt.Errorf("mail.bodyFormat %q is not supported", c.Mail.BodyFormat)
	}
	switch c.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("environment %q is not supported", c.Environment)
	}
	return nil
}
