package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Addr             string        `koanf:"addr"`
	Env              string        `koanf:"env"`
	AccessSecret     string        `koanf:"access-secret"`
	RefreshSecret    string        `koanf:"refresh-secret"`
	AccessTTL        time.Duration `koanf:"access-ttl"`
	RefreshTTL       time.Duration `koanf:"refresh-ttl"`
	BcryptCost       int           `koanf:"bcrypt-cost"`
	MaxAttempts      int           `koanf:"max-attempts"`
	LockDuration     time.Duration `koanf:"lock-duration"`
	RateLimitMax     int           `koanf:"rate-limit-max"`
	RateLimitWindow  time.Duration `koanf:"rate-limit-window"`
	SweepInterval    time.Duration `koanf:"sweep-interval"`
	CronSecret       string        `koanf:"cron-secret"`
	SentryDSN        string        `koanf:"sentry-dsn"`
	AdminEmail       string        `koanf:"admin-email"`
	AdminPassword    string        `koanf:"admin-password"`
	SelfServiceRoles []string      `koanf:"self-service-roles"`
}

func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		Env:              "development",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		BcryptCost:       bcrypt.DefaultCost,
		MaxAttempts:      5,
		LockDuration:     15 * time.Minute,
		RateLimitMax:     10,
		RateLimitWindow:  time.Minute,
		SelfServiceRoles: []string{"user"},
	}
}

func (c Config) Validate() error {
	errs := oops.Code("CONFIG_INVALID")

	if c.AccessSecret == "" {
		return errs.Errorf("missing required env: ACCESS_TOKEN_SECRET")
	}
	if c.RefreshSecret == "" {
		return errs.Errorf("missing required env: REFRESH_TOKEN_SECRET")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errs.Errorf("access and refresh token secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errs.With("access_ttl", c.AccessTTL, "refresh_ttl", c.RefreshTTL).Errorf("token lifetimes must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errs.With("bcrypt_cost", c.BcryptCost).Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.MaxAttempts < 1 {
		return errs.With("max_attempts", c.MaxAttempts).Errorf("max attempts must be at least 1")
	}
	if c.LockDuration < 0 {
		return errs.With("lock_duration", c.LockDuration).Errorf("lock duration must not be negative")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errs.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	return nil
}

// RegisterFlags declares one flag per config key, defaulting to DefaultConfig.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("addr", d.Addr, "listen address")
	fs.String("env", d.Env, "environment name reported to Sentry")
	fs.String("access-secret", "", "HS256 secret for access tokens")
	fs.String("refresh-secret", "", "HS256 secret for refresh tokens")
	fs.Duration("access-ttl", d.AccessTTL, "access token lifetime")
	fs.Duration("refresh-ttl", d.RefreshTTL, "refresh token lifetime")
	fs.Int("bcrypt-cost", d.BcryptCost, "bcrypt work factor")
	fs.Int("max-attempts", d.MaxAttempts, "failed logins before an account is locked")
	fs.Duration("lock-duration", d.LockDuration, "how long a locked account stays locked")
	fs.Int("rate-limit-max", d.RateLimitMax, "login requests allowed per IP per window")
	fs.Duration("rate-limit-window", d.RateLimitWindow, "login rate limit window")
	fs.Duration("sweep-interval", d.SweepInterval, "periodic eviction interval (0 disables)")
	fs.StringSlice("self-service-roles", d.SelfServiceRoles, "roles a caller may request at registration")
}

type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// Flags overrides everything else, but only for flags set explicitly.
	Flags      *pflag.FlagSet
	LoadDotEnv bool
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// LoadConfig layers defaults, the YAML file, the environment and explicit
// flags, in that order.
func LoadConfig(options LoadOptions) (Config, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}
	getenv := options.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")

	if options.ConfigFile != "" {
		if err := k.Load(file.Provider(options.ConfigFile), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("file", options.ConfigFile).Wrapf(err, "load config file")
		}
	}

	if err := applyEnv(k, getenv); err != nil {
		return Config{}, err
	}

	if options.Flags != nil {
		if err := k.Load(posflag.Provider(options.Flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "load flags")
		}
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}

	return cfg, cfg.Validate()
}

func applyEnv(k *koanf.Koanf, getenv func(string) string) error {
	set := func(key string, value any) error {
		if err := k.Set(key, value); err != nil {
			return oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
		return nil
	}

	stringKeys := map[string]string{
		"APP_ENV":              "env",
		"ACCESS_TOKEN_SECRET":  "access-secret",
		"REFRESH_TOKEN_SECRET": "refresh-secret",
		"CRON_SECRET":          "cron-secret",
		"SENTRY_DSN":           "sentry-dsn",
		"ADMIN_EMAIL":          "admin-email",
		"ADMIN_PASSWORD":       "admin-password",
	}
	for name, key := range stringKeys {
		if value := envString(getenv, name); value != "" {
			if err := set(key, value); err != nil {
				return err
			}
		}
	}

	if roles := envList(getenv, "SELF_SERVICE_ROLES"); len(roles) > 0 {
		if err := set("self-service-roles", roles); err != nil {
			return err
		}
	}

	if port := envString(getenv, "PORT"); port != "" {
		if err := set("addr", ":"+port); err != nil {
			return err
		}
	}

	ints := map[string]string{
		"BCRYPT_COST":          "bcrypt-cost",
		"LOGIN_MAX_ATTEMPTS":   "max-attempts",
		"LOGIN_RATE_LIMIT_MAX": "rate-limit-max",
	}
	for name, key := range ints {
		if value, ok := envInt(getenv, name); ok {
			if err := set(key, value); err != nil {
				return err
			}
		}
	}

	durations := []struct {
		name string
		key  string
		unit time.Duration
	}{
		{"ACCESS_TOKEN_TTL_MINUTES", "access-ttl", time.Minute},
		{"REFRESH_TOKEN_TTL_HOURS", "refresh-ttl", time.Hour},
		{"LOGIN_LOCK_MINUTES", "lock-duration", time.Minute},
		{"LOGIN_RATE_LIMIT_WINDOW_SECONDS", "rate-limit-window", time.Second},
		{"AUTH_SWEEP_INTERVAL_MINUTES", "sweep-interval", time.Minute},
	}
	for _, d := range durations {
		if value, ok := envInt(getenv, d.name); ok {
			if err := set(d.key, (time.Duration(value) * d.unit).String()); err != nil {
				return err
			}
		}
	}

	return nil
}

func envString(getenv func(string) string, name string) string {
	return strings.TrimSpace(getenv(name))
}

func envList(getenv func(string) string, name string) []string {
	var values []string
	for _, part := range strings.Split(envString(getenv, name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// envInt ignores unparsable and negative values, like an unset variable.
func envInt(getenv func(string) string, name string) (int, bool) {
	value := envString(getenv, name)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return parsed, true
}
