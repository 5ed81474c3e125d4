package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Routing-number defaults. Deployments override these per environment.
const (
	DefaultOperatorNumber = "+12399661917"
	DefaultCallerID       = "+12394267058"

	defaultConferenceWaitURL = "http://twimlets.com/holdmusic?Bucket=com.twilio.music.ambient"
)

// Config holds everything the API process reads from the environment. No
// business logic touches raw env vars.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	Sweep  SweepConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full.
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TwilioConfig carries the carrier account plus the routing numbers the
// engine dials on behalf of tenants.
type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	WebhookSecret string

	// CallerID is the number outbound engine legs are placed from.
	CallerID string
	// OperatorNumber is the IVR fallback target and the only number the
	// transfer endpoint may hand a call to.
	OperatorNumber string
	// PublicBaseURL is the externally reachable prefix for webhook callbacks
	// (dial actions, status callbacks, transcription callbacks).
	PublicBaseURL string
	// ConferenceWaitURL plays hold music while a conference assembles.
	ConferenceWaitURL string
}

// SweepConfig bounds how long unconfirmed session records may stay open
// before the background sweeper drives them to a terminal state.
type SweepConfig struct {
	Interval              time.Duration
	RingingTimeout        time.Duration
	ActiveConferenceLimit time.Duration
}

// envReader accumulates parse failures so Load reports them all at once.
type envReader struct {
	errs []error
}

func (e *envReader) str(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// secret reads without trimming; passwords may legitimately contain spaces.
func (e *envReader) secret(key string) string {
	return os.Getenv(key)
}

func (e *envReader) port(key string) int {
	v := e.str(key)
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("%s is required", key))
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

// duration returns zero for unset or malformed values; defaults are applied
// in Validate.
func (e *envReader) duration(key string) time.Duration {
	v := e.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a duration like 30s, got %q", key, v))
		return 0
	}
	return d
}

func Load() (Config, error) {
	var e envReader

	c := Config{
		App: AppConfig{
			Env:  e.str("APP_ENV"),
			Port: e.port("APP_PORT"),
		},
		DB: DBConfig{
			Host:     e.str("DB_HOST"),
			Port:     e.port("DB_PORT"),
			User:     e.str("DB_USER"),
			Password: e.secret("DB_PASSWORD"),
			Name:     e.str("DB_NAME"),
			SSLMode:  e.str("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host: e.str("REDIS_HOST"),
			Port: e.port("REDIS_PORT"),
		},
		Auth: AuthConfig{
			JWTSecret:       e.secret("JWT_SECRET"),
			JWTIssuer:       e.str("JWT_ISSUER"),
			JWTAudience:     e.str("JWT_AUDIENCE"),
			AccessTokenTTL:  e.duration("JWT_ACCESS_TTL"),
			RefreshTokenTTL: e.duration("JWT_REFRESH_TTL"),
		},
		Twilio: TwilioConfig{
			AccountSID:        e.str("TWILIO_ACCOUNT_SID"),
			AuthToken:         e.secret("TWILIO_AUTH_TOKEN"),
			WebhookSecret:     e.secret("TWILIO_WEBHOOK_SECRET"),
			CallerID:          e.str("TWILIO_CALLER_ID"),
			OperatorNumber:    e.str("OPERATOR_NUMBER"),
			PublicBaseURL:     e.str("PUBLIC_BASE_URL"),
			ConferenceWaitURL: e.str("CONFERENCE_WAIT_URL"),
		},
		Sweep: SweepConfig{
			Interval:              e.duration("SWEEP_INTERVAL"),
			RingingTimeout:        e.duration("SWEEP_RINGING_TIMEOUT"),
			ActiveConferenceLimit: e.duration("SWEEP_ACTIVE_CONFERENCE_LIMIT"),
		},
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required fields and fills defaults for the optional ones.
func (c *Config) Validate() error {
	var errs []error
	requireNonEmpty := func(v, msg string) {
		if v == "" {
			errs = append(errs, errors.New(msg))
		}
	}
	requirePort := func(n int, key string) {
		if n <= 0 || n > 65535 {
			errs = append(errs, fmt.Errorf("%s must be a valid port, got %d", key, n))
		}
	}

	switch c.App.Env {
	case "local", "dev", "staging", "production":
	case "":
		errs = append(errs, errors.New("APP_ENV is required"))
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	requirePort(c.App.Port, "APP_PORT")

	requireNonEmpty(c.DB.Host, "DB_HOST is required")
	requirePort(c.DB.Port, "DB_PORT")
	requireNonEmpty(c.DB.User, "DB_USER is required")
	requireNonEmpty(c.DB.Name, "DB_NAME is required")
	switch c.DB.SSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	case "":
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	default:
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	requireNonEmpty(c.Redis.Host, "REDIS_HOST is required")
	requirePort(c.Redis.Port, "REDIS_PORT")

	requireNonEmpty(c.Auth.JWTSecret, "JWT_SECRET is required")
	if c.IsProduction() {
		requireNonEmpty(c.Auth.JWTIssuer, "JWT_ISSUER is required in production")
		requireNonEmpty(c.Auth.JWTAudience, "JWT_AUDIENCE is required in production")
		requireNonEmpty(c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID is required in production")
		requireNonEmpty(c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN is required in production")
		requireNonEmpty(c.Twilio.PublicBaseURL, "PUBLIC_BASE_URL is required in production")
	}

	if c.Twilio.CallerID == "" {
		c.Twilio.CallerID = DefaultCallerID
	}
	if c.Twilio.OperatorNumber == "" {
		c.Twilio.OperatorNumber = DefaultOperatorNumber
	}
	if c.Twilio.ConferenceWaitURL == "" {
		c.Twilio.ConferenceWaitURL = defaultConferenceWaitURL
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = 30 * time.Second
	}
	if c.Sweep.RingingTimeout <= 0 {
		c.Sweep.RingingTimeout = 2 * time.Minute
	}
	if c.Sweep.ActiveConferenceLimit <= 0 {
		c.Sweep.ActiveConferenceLimit = 4 * time.Hour
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN contains secrets; never log it.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
