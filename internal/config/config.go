package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string
	Port          string
	Origin        string // CORS
	SessionSecret string

	// Remote store, tried in order.
	Endpoints      []string
	RequestTimeout time.Duration

	PollInterval      time.Duration
	GraceUpdate       time.Duration
	GraceCreate       time.Duration
	GraceCreatePhotos time.Duration

	ClosureRequired  bool
	ClosureMinLength int

	IndicatorCatalog string // optional YAML override

	DBURL string // optional mutation journal

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotifyMode     string // remote|local
	MailDailyQuota int
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	MailFrom       string
	MailCC         []string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

const (
	NotifyRemote = "remote"
	NotifyLocal  = "local"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	n, err := strconv.Atoi(env(k, ""))
	if err != nil {
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	b, err := strconv.ParseBool(env(k, ""))
	if err != nil {
		return def
	}
	return b
}

func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(env(k, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func Load() Config {
	return Config{
		Env:           env("APP_ENV", "dev"),
		Port:          env("API_PORT", "8080"),
		Origin:        env("CORS_ORIGIN", "http://localhost:3000"),
		SessionSecret: env("SESSION_SECRET", "dev-secret-change-me"),

		Endpoints:      SplitList(env("STORE_ENDPOINTS", "")),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),

		PollInterval:      envDuration("POLL_INTERVAL", 60*time.Second),
		GraceUpdate:       envDuration("GRACE_UPDATE", 2*time.Second),
		GraceCreate:       envDuration("GRACE_CREATE", 3*time.Second),
		GraceCreatePhotos: envDuration("GRACE_CREATE_PHOTOS", 8*time.Second),

		ClosureRequired:  envBool("CLOSURE_REQUIRED", false),
		ClosureMinLength: envInt("CLOSURE_MIN_LENGTH", 10),

		IndicatorCatalog: env("INDICATOR_CATALOG", ""),

		DBURL: env("DB_DSN", ""),

		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPassword: env("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		NotifyMode:     strings.ToLower(env("NOTIFY_MODE", NotifyRemote)),
		MailDailyQuota: envInt("MAIL_DAILY_QUOTA", 100),
		SMTPHost:       env("SMTP_HOST", ""),
		SMTPPort:       envInt("SMTP_PORT", 587),
		SMTPUser:       env("SMTP_USER", ""),
		SMTPPassword:   env("SMTP_PASSWORD", ""),
		MailFrom:       env("MAIL_FROM", ""),
		MailCC:         SplitList(env("MAIL_CC", "")),

		CloudinaryCloudName: env("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    env("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: env("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    env("CLOUDINARY_FOLDER", "leakdesk"),
	}
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Endpoints) == 0 {
		errs = append(errs, errors.New("STORE_ENDPOINTS: at least one endpoint is required"))
	}
	switch c.NotifyMode {
	case NotifyRemote:
	case NotifyLocal:
		if c.SMTPHost == "" || c.MailFrom == "" {
			errs = append(errs, errors.New("NOTIFY_MODE=local needs SMTP_HOST and MAIL_FROM"))
		}
	default:
		errs = append(errs, errors.New("NOTIFY_MODE must be remote or local"))
	}
	if c.Env != "dev" && c.SessionSecret == "dev-secret-change-me" {
		errs = append(errs, errors.New("SESSION_SECRET must be set outside dev"))
	}
	return errors.Join(errs...)
}

func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
