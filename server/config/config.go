// Package config loads server settings from the environment, reading a .env
// file first when one is present.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string `env:"SPACEDAN_ADDR" envDefault:":8080"`
	DataDir    string `env:"SPACEDAN_DATA_DIR" envDefault:"data"`
	DBPath     string `env:"SPACEDAN_DB"`
	JWTKeyPath string `env:"SPACEDAN_JWT_KEY"`

	LogLevel   string `env:"SPACEDAN_LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"SPACEDAN_LOG_FILE"`
	LogConsole bool   `env:"SPACEDAN_LOG_CONSOLE" envDefault:"true"`
}

// Load reads envFiles (missing files are ignored) and parses the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "spacedan.db")
	}
	if cfg.JWTKeyPath == "" {
		cfg.JWTKeyPath = filepath.Join(cfg.DataDir, "jwt.key")
	}
	return cfg, nil
}
