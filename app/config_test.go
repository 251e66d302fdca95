package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) string {
	return func(name string) string { return values[name] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"ACCESS_TOKEN_SECRET":  "access",
		"REFRESH_TOKEN_SECRET": "refresh",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(LoadOptions{Getenv: envMap(baseEnv())})
	require.NoError(t, err)

	want := DefaultConfig()
	want.AccessSecret = "access"
	want.RefreshSecret = "refresh"
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_Environment(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["APP_ENV"] = "production"
	env["ACCESS_TOKEN_TTL_MINUTES"] = "5"
	env["REFRESH_TOKEN_TTL_HOURS"] = "48"
	env["BCRYPT_COST"] = "11"
	env["LOGIN_MAX_ATTEMPTS"] = "3"
	env["LOGIN_LOCK_MINUTES"] = "30"
	env["LOGIN_RATE_LIMIT_MAX"] = "20"
	env["LOGIN_RATE_LIMIT_WINDOW_SECONDS"] = "90"
	env["AUTH_SWEEP_INTERVAL_MINUTES"] = "10"
	env["CRON_SECRET"] = "cron"
	env["SELF_SERVICE_ROLES"] = "user, editor ,"

	cfg, err := LoadConfig(LoadOptions{Getenv: envMap(env)})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 11, cfg.BcryptCost)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.LockDuration)
	assert.Equal(t, 20, cfg.RateLimitMax)
	assert.Equal(t, 90*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "cron", cfg.CronSecret)
	assert.Equal(t, []string{"user", "editor"}, cfg.SelfServiceRoles)
}

func TestLoadConfig_IgnoresUnparsableNumbers(t *testing.T) {
	env := baseEnv()
	env["LOGIN_MAX_ATTEMPTS"] = "many"
	env["ACCESS_TOKEN_TTL_MINUTES"] = "-4"

	cfg, err := LoadConfig(LoadOptions{Getenv: envMap(env)})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
max-attempts: 8
lock-duration: 1h
access-secret: from-file
refresh-secret: refresh-from-file
`), 0o600))

	env := map[string]string{"LOGIN_MAX_ATTEMPTS": "4"}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--lock-duration=2m"}))

	cfg, err := LoadConfig(LoadOptions{ConfigFile: path, Flags: fs, Getenv: envMap(env)})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr, "file over default")
	assert.Equal(t, 4, cfg.MaxAttempts, "env over file")
	assert.Equal(t, 2*time.Minute, cfg.LockDuration, "flag over file")
	assert.Equal(t, "from-file", cfg.AccessSecret)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL, "unset flag keeps default")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "missing.yaml"),
		Getenv:     envMap(baseEnv()),
	})
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "CONFIG_INVALID", oopsErr.Code())
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.AccessSecret = "a"
	valid.RefreshSecret = "b"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"missing access secret", func(c *Config) { c.AccessSecret = "" }, "ACCESS_TOKEN_SECRET"},
		{"missing refresh secret", func(c *Config) { c.RefreshSecret = "" }, "REFRESH_TOKEN_SECRET"},
		{"equal secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }, "must differ"},
		{"zero ttl", func(c *Config) { c.AccessTTL = 0 }, "lifetimes"},
		{"low bcrypt cost", func(c *Config) { c.BcryptCost = 1 }, "bcrypt cost"},
		{"no attempts", func(c *Config) { c.MaxAttempts = 0 }, "max attempts"},
		{"negative lock", func(c *Config) { c.LockDuration = -time.Second }, "lock duration"},
		{"admin email alone", func(c *Config) { c.AdminEmail = "root@x.io" }, "ADMIN_EMAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
