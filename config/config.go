// Package config loads the bot's startup configuration from the
// environment. Loading happens once, before any connection attempt; missing
// mandatory values are fatal.
package config

import (
	"errors"
	"fmt"
	"os"
)

const defaultPrefix = "=>"

// Config is everything the process needs to start.
type Config struct {
	// Token authorizes both the gateway identify and every REST call.
	Token string
	// ClientID and ClientSecret support OAuth token exchange flows; not
	// every deployment needs them.
	ClientID     string
	ClientSecret string
	// Prefix marks messages the bot treats as commands.
	Prefix string
	// ModelPath points at the tab-separated word-frequency dictionary.
	ModelPath string
}

var (
	ErrMissingToken     = errors.New("config: DISCORD_CLIENT_TOKEN is not set")
	ErrMissingModelPath = errors.New("config: MODEL_PATH is not set")
)

// FromEnv reads the configuration from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Token:        os.Getenv("DISCORD_CLIENT_TOKEN"),
		ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		Prefix:       os.Getenv("BOT_PREFIX"),
		ModelPath:    os.Getenv("MODEL_PATH"),
	}

	if cfg.Token == "" {
		return Config{}, ErrMissingToken
	}
	if cfg.ModelPath == "" {
		return Config{}, ErrMissingModelPath
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return Config{}, fmt.Errorf("config: model path: %w", err)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return cfg, nil
}
