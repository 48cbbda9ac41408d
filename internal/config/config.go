package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Tandem/internal/app"
	"github.com/dkeye/Tandem/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Mode           string   `mapstructure:"mode"`
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	Secret         string   `mapstructure:"secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	WS          WSConfig          `mapstructure:"ws"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Rooms       RoomsConfig       `mapstructure:"rooms"`
	Negotiation NegotiationConfig `mapstructure:"negotiation"`
	Heartbeat   HeartbeatConfig   `mapstructure:"heartbeat"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Turn        TurnConfig        `mapstructure:"turn"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type MatchmakingConfig struct {
	FallbackAfter  time.Duration `mapstructure:"fallback_after"`
	QueueTimeout   time.Duration `mapstructure:"queue_timeout"`
	QueueSweep     time.Duration `mapstructure:"queue_sweep"`
	AgedPairsSweep time.Duration `mapstructure:"aged_pairs_sweep"`
}

type RoomsConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
	Sweep  time.Duration `mapstructure:"sweep"`
}

type NegotiationConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Sweep   time.Duration `mapstructure:"sweep"`
}

type HeartbeatConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Sweep   time.Duration `mapstructure:"sweep"`
}

type RateLimitConfig struct {
	Idle  time.Duration                     `mapstructure:"idle"`
	Sweep time.Duration                     `mapstructure:"sweep"`
	Rules map[core.MessageType]app.RateRule `mapstructure:"rules"`
}

type TurnConfig struct {
	Secret         string        `mapstructure:"secret"`
	URLs           []string      `mapstructure:"urls"`
	StunURLs       []string      `mapstructure:"stun_urls"`
	TTL            time.Duration `mapstructure:"ttl"`
	UsernamePrefix string        `mapstructure:"username_prefix"`
}

type AuthConfig struct {
	Required  bool          `mapstructure:"required"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("ws.read_limit", 65536)
	v.SetDefault("ws.ping_period", "30s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "10s")
	v.SetDefault("ws.send_buffer", 64)

	v.SetDefault("matchmaking.fallback_after", "30s")
	v.SetDefault("matchmaking.queue_timeout", "2m")
	v.SetDefault("matchmaking.queue_sweep", "30s")
	v.SetDefault("matchmaking.aged_pairs_sweep", "5s")
	v.SetDefault("rooms.max_age", "30m")
	v.SetDefault("rooms.sweep", "1m")
	v.SetDefault("negotiation.timeout", "15s")
	v.SetDefault("negotiation.sweep", "1s")
	v.SetDefault("heartbeat.timeout", "45s")
	v.SetDefault("heartbeat.sweep", "15s")

	v.SetDefault("rate_limit.idle", "1m")
	v.SetDefault("rate_limit.sweep", "30s")
	for kind, rule := range app.DefaultRateRules() {
		v.SetDefault("rate_limit.rules."+string(kind)+".max", rule.Max)
		v.SetDefault("rate_limit.rules."+string(kind)+".window", rule.Window.String())
	}

	v.SetDefault("turn.urls", []string{})
	v.SetDefault("turn.stun_urls", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("turn.ttl", "5m")
	v.SetDefault("turn.username_prefix", "tandem")

	v.SetDefault("auth.required", false)
	v.SetDefault("auth.token_ttl", "24h")
}

// Load reads config/config.<CONFIG_ENV>.yaml (or the file named by the "config" flag),
// then TANDEM_* environment variables, then any bound flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("tandem")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			fileName = f.Value.String()
		}
		for key, name := range map[string]string{"port": "port", "mode": "mode", "log_level": "log-level"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.WS.SendBuffer <= 0 {
		return fmt.Errorf("%w: ws.send_buffer must be positive", ErrInvalid)
	}
	if c.WS.PingPeriod <= 0 || c.WS.PingPeriod >= c.WS.PongWait {
		return fmt.Errorf("%w: ws.ping_period must be positive and shorter than ws.pong_wait", ErrInvalid)
	}
	// pongs are the only activity an idle participant produces
	if c.WS.PingPeriod >= c.Heartbeat.Timeout {
		return fmt.Errorf("%w: ws.ping_period must be shorter than heartbeat.timeout", ErrInvalid)
	}
	for name, d := range map[string]time.Duration{
		"matchmaking.fallback_after": c.Matchmaking.FallbackAfter,
		"matchmaking.queue_timeout":  c.Matchmaking.QueueTimeout,
		"rooms.max_age":              c.Rooms.MaxAge,
		"negotiation.timeout":        c.Negotiation.Timeout,
		"heartbeat.timeout":          c.Heartbeat.Timeout,
		"rate_limit.idle":            c.RateLimit.Idle,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}
	for kind, rule := range c.RateLimit.Rules {
		if rule.Max <= 0 || rule.Window <= 0 {
			return fmt.Errorf("%w: rate_limit.rules.%s needs positive max and window", ErrInvalid, kind)
		}
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.required needs auth.jwt_secret", ErrInvalid)
	}
	return nil
}
