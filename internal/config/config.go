// Package config loads the portfolio server configuration from the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Zachkp/portfolio/internal/offline"
)

// DefaultPath is the YAML file read when no path is given.
const DefaultPath = "portfolio.yaml"

// Config holds all server settings.
type Config struct {
	Port    string `env:"PORT"                 envDefault:"8080"            yaml:"port"`
	GinMode string `env:"GIN_MODE"             envDefault:"debug"           yaml:"gin_mode"`
	DBPath  string `env:"PORTFOLIO_DB_PATH"    envDefault:"portfolio.db"    yaml:"db_path"`

	AdminUsername string `env:"ADMIN_USERNAME" yaml:"-"`
	AdminPassword string `env:"ADMIN_PASSWORD" yaml:"-"`

	Offline OfflineConfig `yaml:"offline"`
}

// OfflineConfig configures the offline cache controller.
type OfflineConfig struct {
	Origin             string   `env:"PORTFOLIO_ORIGIN"              envDefault:"http://localhost:8080" yaml:"origin"`
	Prefix             string   `env:"PORTFOLIO_CACHE_PREFIX"        envDefault:"portfolio-cache-"      yaml:"prefix"`
	Version            string   `env:"PORTFOLIO_CACHE_VERSION"       envDefault:"v11"                   yaml:"version"`
	FontHosts          []string `env:"PORTFOLIO_FONT_HOSTS"          envSeparator:","                   yaml:"font_hosts"`
	Manifest           []string `yaml:"manifest"`
	Shell              []string `yaml:"shell"`
	InstallConcurrency int      `env:"PORTFOLIO_INSTALL_CONCURRENCY" envDefault:"4"                     yaml:"install_concurrency"`
	Compress           bool     `env:"PORTFOLIO_CACHE_COMPRESS"      envDefault:"true"                  yaml:"compress"`
}

// Load parses the environment, then overlays the YAML file at path. An
// empty path reads DefaultPath if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Offline.FontHosts) == 0 {
		c.Offline.FontHosts = append([]string(nil), offline.DefaultFontHosts...)
	}
	if len(c.Offline.Manifest) == 0 {
		c.Offline.Manifest = append([]string(nil), offline.DefaultManifest...)
	}
	if len(c.Offline.Shell) == 0 {
		c.Offline.Shell = append([]string(nil), offline.DefaultShell...)
	}
	if c.Offline.InstallConcurrency <= 0 {
		c.Offline.InstallConcurrency = 4
	}
}

// CacheName is the current cache store name.
func (c *Config) CacheName() string {
	return c.Offline.Prefix + c.Offline.Version
}

// OfflineController converts the settings into a controller config. assets
// is the static tree used to expand manifest globs and may be nil.
func (c *Config) OfflineController(assets fs.FS) (offline.Config, error) {
	origin, err := url.Parse(c.Offline.Origin)
	if err != nil {
		return offline.Config{}, fmt.Errorf("parse origin: %w", err)
	}
	cfg := offline.Config{
		Prefix:             c.Offline.Prefix,
		Version:            c.Offline.Version,
		Origin:             origin,
		Manifest:           append([]string(nil), c.Offline.Manifest...),
		Assets:             assets,
		FontHosts:          append([]string(nil), c.Offline.FontHosts...),
		Shell:              append([]string(nil), c.Offline.Shell...),
		InstallConcurrency: c.Offline.InstallConcurrency,
	}
	if err := cfg.Validate(); err != nil {
		return offline.Config{}, err
	}
	return cfg, nil
}
