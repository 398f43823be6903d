package main

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
	"golang.org/x/term"
	"gopkg.in/gomail.v2"
	"gopkg.in/yaml.v3"

	"formrelay/internal/config"
)

const (
	configFile    = "config.yaml"
	tokenLength   = 48
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var (
	header  = color.New(color.FgCyan, color.Bold)
	accent  = color.New(color.FgYellow)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
)

func main() {
	header.Println("Form Relay Setup")
	accent.Println(strings.Repeat("=", 50))
	fmt.Println("Server configuration wizard")
	accent.Println(strings.Repeat("=", 50))
	fmt.Println()

	in := bufio.NewReader(os.Stdin)

	existing, hasExisting := loadExisting()
	cfg := existing
	if !hasExisting {
		cfg = config.Config{}
	}

	token := cfg.Auth.Token
	if token != "" {
		accent.Println("Found existing API token.")
		if promptYesNo(in, "Generate a new API token?", false) {
			token = generateToken(tokenLength)
		}
	} else {
		token = generateToken(tokenLength)
	}

	env := promptChoice(in, "Environment", []string{"development", "production"}, defaultString(cfg.Environment, "development"))
	port := promptPort(in, "Server port", defaultPort(cfg.Server.Addr, 8080))

	mode := promptChoice(in, "Credential header style", []string{config.AuthModeBearer, config.AuthModeAPIKey}, defaultString(cfg.Auth.Mode, config.AuthModeBearer))

	smtpHost := prompt(in, "SMTP host", defaultString(cfg.Mail.Host, "smtp.gmail.com"))
	smtpPort := promptPort(in, "SMTP port (465 implicit TLS, 587 STARTTLS)", defaultInt(cfg.Mail.Port, 465))
	username := promptEmail(in, "SMTP username (email address)", cfg.Mail.Username)
	password := promptPassword("SMTP password (app password)")
	if password == "" {
		password = cfg.Mail.Password
	}
	recipient := promptEmail(in, "Recipient for form submissions", defaultString(cfg.Mail.Recipient, username))
	origins := prompt(in, "Allowed origins (comma-separated)", defaultString(strings.Join(cfg.Server.Cors.AllowOrigins, ","), "http://localhost:3000"))

	encryption := config.EncryptionStartTLS
	if smtpPort == 465 {
		encryption = config.EncryptionSSL
	}

	if promptYesNo(in, "Verify SMTP credentials now?", true) {
		fmt.Print("Testing SMTP credentials... ")
		if err := verifySMTP(smtpHost, smtpPort, encryption == config.EncryptionSSL, username, password); err != nil {
			failure.Println("failed")
			failure.Printf("  %v\n", err)
			fmt.Println("  For Gmail: enable 2-step verification, then create an app password under Security.")
			if !promptYesNo(in, "Continue anyway?", false) {
				os.Exit(1)
			}
		} else {
			success.Println("ok")
		}
	}

	cfg.Server.Addr = ":" + strconv.Itoa(port)
	cfg.Server.Cors.AllowOrigins = splitOrigins(origins)
	cfg.Auth.Mode = mode
	cfg.Auth.Token = token
	cfg.Mail.Host = smtpHost
	cfg.Mail.Port = smtpPort
	cfg.Mail.Encryption = encryption
	cfg.Mail.Username = username
	cfg.Mail.Password = password
	cfg.Mail.Recipient = recipient
	cfg.Environment = env
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./data/formrelay.db"
	}

	if err := writeConfig(cfg); err != nil {
		failure.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}
	success.Println("\nConfiguration saved to " + configFile)

	fmt.Println("\nYour API token (keep it secure):")
	accent.Println("\n" + token + "\n")
	printCurlExample(cfg, token, port)

	if promptYesNo(in, "Send a test submission to a running server now?", false) {
		sendTestSubmission(cfg, token, port)
	}
}

func loadExisting() (config.Config, bool) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return config.Config{}, false
	}
	var cfg config.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return config.Config{}, false
	}
	return cfg, true
}

func writeConfig(cfg config.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(configFile, b, 0o600)
}

func verifySMTP(host string, port int, ssl bool, username, password string) error {
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = ssl
	closer, err := d.Dial()
	if err != nil {
		return err
	}
	return closer.Close()
}

func printCurlExample(cfg config.Config, token string, port int) {
	authHeader := "Authorization: Bearer " + token
	if cfg.Auth.Mode == config.AuthModeAPIKey {
		authHeader = "X-API-Key: " + token
	}
	fmt.Println("To test your endpoint:")
	accent.Printf(`
curl -X POST \
  -H "%s" \
  -H "Content-Type: application/json" \
  -d '{"name":"John Doe","email":"test@example.com","message":"Test message"}' \
  http://localhost:%d/api/submit-form

`, authHeader, port)
}

func sendTestSubmission(cfg config.Config, token string, port int) {
	client := resty.New().SetTimeout(10 * time.Second)
	req := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"name":    "John Doe",
			"email":   "test@example.com",
			"message": "Test message",
		})
	if cfg.Auth.Mode == config.AuthModeAPIKey {
		req.SetHeader("X-API-Key", token)
	} else {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	resp, err := req.Post(fmt.Sprintf("http://localhost:%d/api/submit-form", port))
	if err != nil {
		failure.Printf("Test request failed: %v (is the server running?)\n", err)
		return
	}
	if resp.IsSuccess() {
		success.Printf("Test submission accepted: %s\n", resp.String())
	} else {
		failure.Printf("Test submission rejected (%d): %s\n", resp.StatusCode(), resp.String())
	}
}

func generateToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}

func prompt(in *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func promptEmail(in *bufio.Reader, label, def string) string {
	for {
		v := prompt(in, label, def)
		if emailRe.MatchString(v) {
			return v
		}
		failure.Println("Please enter a valid email address.")
	}
}

func promptPort(in *bufio.Reader, label string, def int) int {
	for {
		v := prompt(in, label, strconv.Itoa(def))
		n, err := strconv.Atoi(v)
		if err == nil && n >= 1 && n <= 65535 {
			return n
		}
		failure.Println("Please enter a port number between 1 and 65535.")
	}
}

func promptChoice(in *bufio.Reader, label string, choices []string, def string) string {
	for {
		v := strings.ToLower(prompt(in, label+" ("+strings.Join(choices, "/")+")", def))
		for _, c := range choices {
			if v == c {
				return c
			}
		}
		failure.Printf("Please choose one of: %s\n", strings.Join(choices, ", "))
	}
}

func promptYesNo(in *bufio.Reader, label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	v := strings.ToLower(prompt(in, label+" ("+hint+")", ""))
	if v == "" {
		return def
	}
	return v == "y" || v == "yes"
}

func promptPassword(label string) string {
	fmt.Printf("%s: ", label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func defaultInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func defaultPort(addr string, def int) int {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		if n, err := strconv.Atoi(addr[i+1:]); err == nil && n > 0 {
			return n
		}
	}
	return def
}
