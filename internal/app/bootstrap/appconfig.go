package bootstrap

import (
	"errors"
	"time"

	"github.com/dalemusser/whiskers/config"
	"github.com/dalemusser/whiskers/pantry/email"
	"github.com/dalemusser/whiskers/pantry/validate"
)

// EnvPrefix is the env var prefix for app keys (WHISKERS_REDIS_ADDR).
const EnvPrefix = "WHISKERS"

// appKeys are the app-level config keys.
var appKeys = []config.AppKey{
	{Name: "session_name", Default: "whiskers_session", Desc: "Auth session cookie name"},
	{Name: "session_secure", Default: false, Desc: "Mark session cookies Secure (set in prod)"},
	{Name: "session_ttl", Default: "24h", Desc: "Auth session lifetime"},

	{Name: "google_client_id", Default: "", Desc: "Google OAuth client ID (empty disables Google sign-in)"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth client secret"},
	{Name: "google_redirect_url", Default: "", Desc: "Google OAuth callback URL"},

	{Name: "redis_addr", Default: "", Desc: "Redis address (empty keeps sessions and cache in memory)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	{Name: "catfacts_base_url", Default: "https://catfact.ninja", Desc: "Cat facts API base URL"},
	{Name: "catfacts_limit", Default: 5, Desc: "Number of cat facts on the home view"},
	{Name: "catfacts_ttl", Default: "10m", Desc: "How long fetched cat facts are reused"},

	{Name: "require_login", Default: true, Desc: "Require sign-in for the home view"},
	{Name: "allowed_email_domains", Default: []string{}, Desc: "Email domains allowed to sign in (empty allows all)"},
	{Name: "login_view_ttl", Default: "30m", Desc: "Idle lifetime of a mounted login view"},
	{Name: "login_rate_per_minute", Default: 30, Desc: "Sign-in attempts allowed per client per minute"},

	{Name: "email_max_length", Default: 0, Desc: "Longest accepted email address (0 disables, 254 is the RFC 5321 limit)"},
	{Name: "email_strict_local_dots", Default: false, Desc: "Reject leading, trailing or doubled dots before @"},
	{Name: "email_ascii_only", Default: false, Desc: "Reject non-ASCII email addresses"},
	{Name: "email_idna", Default: false, Desc: "Require non-ASCII domains to convert to punycode"},

	{Name: "smtp_host", Default: "", Desc: "SMTP host for sign-in notices (empty disables)"},
	{Name: "smtp_port", Default: 587, Desc: "SMTP port"},
	{Name: "smtp_username", Default: "", Desc: "SMTP username"},
	{Name: "smtp_password", Default: "", Desc: "SMTP password"},
	{Name: "smtp_from", Default: "", Desc: "From address for sign-in notices"},

	{Name: "request_timeout", Default: "15s", Desc: "Deadline for page and sign-in requests"},

	{Name: "admin_api_key", Default: "", Desc: "Key for /metrics and /debug/pprof (empty leaves /metrics open)"},
	{Name: "enable_pprof", Default: false, Desc: "Mount /debug/pprof (requires admin_api_key)"},
}

// AppConfig holds whiskers-specific configuration.
type AppConfig struct {
	SessionName   string
	SessionSecure bool
	SessionTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CatFactsBaseURL string
	CatFactsLimit   int
	CatFactsTTL     time.Duration

	RequireLogin        bool
	AllowedEmailDomains []string
	LoginViewTTL        time.Duration
	LoginRatePerMinute  int

	EmailPolicy validate.Policy
	SMTP        email.Config

	RequestTimeout time.Duration

	AdminAPIKey string
	EnablePprof bool
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c AppConfig) GoogleEnabled() bool { return c.GoogleClientID != "" }

// SMTPEnabled reports whether sign-in notices are sent.
func (c AppConfig) SMTPEnabled() bool { return c.SMTP.Host != "" }

func appConfigFrom(v config.AppConfigValues) (AppConfig, error) {
	cfg := AppConfig{
		SessionName:   v.String("session_name"),
		SessionSecure: v.Bool("session_secure"),
		SessionTTL:    v.Duration("session_ttl", 24*time.Hour),

		GoogleClientID:     v.String("google_client_id"),
		GoogleClientSecret: v.String("google_client_secret"),
		GoogleRedirectURL:  v.String("google_redirect_url"),

		RedisAddr:     v.String("redis_addr"),
		RedisPassword: v.String("redis_password"),
		RedisDB:       v.Int("redis_db"),

		CatFactsBaseURL: v.String("catfacts_base_url"),
		CatFactsLimit:   v.Int("catfacts_limit"),
		CatFactsTTL:     v.Duration("catfacts_ttl", 10*time.Minute),

		RequireLogin:        v.Bool("require_login"),
		AllowedEmailDomains: v.StringSlice("allowed_email_domains"),
		LoginViewTTL:        v.Duration("login_view_ttl", 30*time.Minute),
		LoginRatePerMinute:  v.Int("login_rate_per_minute"),

		EmailPolicy: validate.Policy{
			MaxLength:       v.Int("email_max_length"),
			StrictLocalDots: v.Bool("email_strict_local_dots"),
			ASCIIOnly:       v.Bool("email_ascii_only"),
			IDNA:            v.Bool("email_idna"),
		},
		SMTP: email.Config{
			Host:        v.String("smtp_host"),
			Port:        v.Int("smtp_port"),
			Username:    v.String("smtp_username"),
			Password:    v.String("smtp_password"),
			FromAddress: v.String("smtp_from"),
			FromName:    "whiskers",
		},

		RequestTimeout: v.Duration("request_timeout", 15*time.Second),

		AdminAPIKey: v.String("admin_api_key"),
		EnablePprof: v.Bool("enable_pprof"),
	}
	return cfg, cfg.validate()
}

func (c AppConfig) validate() error {
	var errs []error
	if c.GoogleClientID != "" && (c.GoogleClientSecret == "" || c.GoogleRedirectURL == "") {
		errs = append(errs, errors.New("google_client_secret and google_redirect_url are required with google_client_id"))
	}
	if c.SMTP.Host != "" && !validate.SimpleEmailValid(c.SMTP.FromAddress) {
		errs = append(errs, errors.New("smtp_from must be a valid address when smtp_host is set"))
	}
	if c.EnablePprof && c.AdminAPIKey == "" {
		errs = append(errs, errors.New("enable_pprof requires admin_api_key"))
	}
	if c.CatFactsLimit < 1 {
		errs = append(errs, errors.New("catfacts_limit must be at least 1"))
	}
	if c.LoginRatePerMinute < 0 {
		errs = append(errs, errors.New("login_rate_per_minute must not be negative"))
	}
	if c.EmailPolicy.MaxLength < 0 {
		errs = append(errs, errors.New("email_max_length must not be negative"))
	}
	return errors.Join(errs...)
}
