// Package config provides Viper-based configuration loading for the Set
// Arena server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GatewayConfig holds the websocket gateway settings.
type GatewayConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// WriteWait is the per-message write deadline for client connections.
	WriteWait time.Duration `mapstructure:"write_wait"`
	// PongWait is how long a client may go without answering a ping.
	PongWait time.Duration `mapstructure:"pong_wait"`
}

// Addr returns the "host:port" listen address.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// NATSConfig holds the optional cross-process event bus settings.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables NATS; the server then
	// runs on its in-process bus only.
	URL string `mapstructure:"url"`
}

// GameConfig holds the table rules shared by every session.
type GameConfig struct {
	// GoalScore ends the round when any player reaches it.
	GoalScore int `mapstructure:"goal_score"`
	// PlayerTimeout evicts players not seen within this window.
	PlayerTimeout time.Duration `mapstructure:"player_timeout"`
	// MoreCardsThreshold is the roster fraction required to deal extra cards.
	MoreCardsThreshold float64 `mapstructure:"more_cards_threshold"`
	// EndGameThreshold is the roster fraction required to end the round.
	EndGameThreshold float64 `mapstructure:"end_game_threshold"`
	// RestartThreshold is the roster fraction required to restart the round.
	RestartThreshold float64 `mapstructure:"restart_threshold"`
	// GCInterval is how often abandoned sessions are collected.
	GCInterval time.Duration `mapstructure:"gc_interval"`
	// GCGracePeriod protects young empty sessions from collection.
	GCGracePeriod time.Duration `mapstructure:"gc_grace_period"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateGateway(c.Gateway); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGateway(g GatewayConfig) error {
	var errs []string
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("gateway.port must be 1-65535, got %d", g.Port))
	}
	if g.WriteWait <= 0 {
		errs = append(errs, "gateway.write_wait must be positive")
	}
	if g.PongWait <= 0 {
		errs = append(errs, "gateway.pong_wait must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.GoalScore < 1 {
		errs = append(errs, fmt.Sprintf("game.goal_score must be >= 1, got %d", g.GoalScore))
	}
	if g.PlayerTimeout <= 0 {
		errs = append(errs, "game.player_timeout must be positive")
	}
	if g.MoreCardsThreshold <= 0 || g.MoreCardsThreshold > 1 {
		errs = append(errs, fmt.Sprintf("game.more_cards_threshold must be in (0, 1], got %g", g.MoreCardsThreshold))
	}
	if g.EndGameThreshold <= 0 || g.EndGameThreshold > 1 {
		errs = append(errs, fmt.Sprintf("game.end_game_threshold must be in (0, 1], got %g", g.EndGameThreshold))
	}
	if g.RestartThreshold <= 0 || g.RestartThreshold > 1 {
		errs = append(errs, fmt.Sprintf("game.restart_threshold must be in (0, 1], got %g", g.RestartThreshold))
	}
	if g.GCInterval <= 0 {
		errs = append(errs, "game.gc_interval must be positive")
	}
	if g.GCGracePeriod <= 0 {
		errs = append(errs, "game.gc_grace_period must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SETARENA_ prefix
	v.SetEnvPrefix("SETARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.write_wait", "10s")
	v.SetDefault("gateway.pong_wait", "60s")

	v.SetDefault("nats.url", "")

	v.SetDefault("game.goal_score", 10)
	v.SetDefault("game.player_timeout", "20s")
	v.SetDefault("game.more_cards_threshold", 2.0/3.0)
	v.SetDefault("game.end_game_threshold", 2.0/3.0)
	v.SetDefault("game.restart_threshold", 2.0/3.0)
	v.SetDefault("game.gc_interval", "1s")
	v.SetDefault("game.gc_grace_period", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
