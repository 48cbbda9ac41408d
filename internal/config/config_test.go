package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Tandem/internal/app"
	"github.com/dkeye/Tandem/internal/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.Int("port", 8080, "")
	fs.String("mode", "release", "")
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.WS.PingPeriod)
	assert.Less(t, cfg.WS.PingPeriod, cfg.Heartbeat.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Matchmaking.FallbackAfter)
	assert.Equal(t, 2*time.Minute, cfg.Matchmaking.QueueTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.MaxAge)
	assert.Equal(t, 15*time.Second, cfg.Negotiation.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Heartbeat.Timeout)
	assert.Equal(t, app.DefaultRateRules(), cfg.RateLimit.Rules)
	assert.Equal(t, 5*time.Minute, cfg.Turn.TTL)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tandem.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
mode: debug
port: 9000
matchmaking:
  fallback_after: 10s
rate_limit:
  rules:
    chat_message:
      max: 3
      window: 1s
turn:
  secret: s3cret
  urls: ["turn:turn.example.org:3478"]
`), 0o600))

	t.Setenv("TANDEM_ROOMS_MAX_AGE", "5m")

	cfg, err := Load(testFlags(t, "--config", file, "--port", "9100"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9100, cfg.Port, "flags win over the file")
	assert.Equal(t, 10*time.Second, cfg.Matchmaking.FallbackAfter)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.MaxAge)
	assert.Equal(t, app.RateRule{Max: 3, Window: time.Second}, cfg.RateLimit.Rules["chat_message"])
	assert.Equal(t, app.RateRule{Max: 5, Window: 10 * time.Second}, cfg.RateLimit.Rules["join_queue"])
	assert.Equal(t, "s3cret", cfg.Turn.Secret)
	assert.Equal(t, []string{"turn:turn.example.org:3478"}, cfg.Turn.URLs)
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")
	base, err := Load(nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"send buffer", func(c *Config) { c.WS.SendBuffer = 0 }},
		{"ping after pong", func(c *Config) { c.WS.PingPeriod = c.WS.PongWait }},
		{"ping after heartbeat", func(c *Config) { c.WS.PingPeriod = c.Heartbeat.Timeout }},
		{"fallback", func(c *Config) { c.Matchmaking.FallbackAfter = 0 }},
		{"rule", func(c *Config) { c.RateLimit.Rules = map[core.MessageType]app.RateRule{core.TypeChatMessage: {Max: 0, Window: time.Second}} }},
		{"auth without secret", func(c *Config) { c.Auth.Required = true; c.Auth.JWTSecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, base.Validate())
}
