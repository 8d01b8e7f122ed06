// Package netcfg holds the chat client's endpoints and local paths.
package netcfg

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	APIBase   string `env:"SPACEDAN_API_BASE" envDefault:"http://127.0.0.1:8080"` // REST
	ServerURL string `env:"SPACEDAN_WS_URL" envDefault:"ws://127.0.0.1:8080/ws"`  // WebSocket
	Profile   string `env:"SPACEDAN_PROFILE" envDefault:"default"`

	LogLevel string `env:"SPACEDAN_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"SPACEDAN_LOG_FILE"`
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.Profile = sanitize(cfg.Profile)
	if cfg.LogFile == "" {
		cfg.LogFile = cfg.Path("spacechat.log")
	}
	return cfg, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]`)

func sanitize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "default"
	}
	return s
}

// Dir is OS config dir / space-dan / profile, e.g. ~/.config/space-dan/default.
func (c *Config) Dir() string {
	root, _ := os.UserConfigDir()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".config")
	}
	dir := filepath.Join(root, "space-dan", c.Profile)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func (c *Config) Path(name string) string {
	return filepath.Join(c.Dir(), name)
}
