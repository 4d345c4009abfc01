// Package config loads station settings from a YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, a .env file,
// process environment variables. Command-line flags are applied on top by
// the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/scanner"
)

// Environment variables.
const (
	EnvAPIURL       = "POSSCAN_API_URL"
	EnvAccessToken  = "POSSCAN_ACCESS_TOKEN"
	EnvRefreshToken = "POSSCAN_REFRESH_TOKEN"
	EnvDatabase     = "POSSCAN_DATABASE"
)

// Defaults.
const (
	DefaultDatabase     = "posscan.db"
	DefaultCatalogCache = "posscan-catalog.bolt"
)

// Config is the station configuration.
type Config struct {
	APIURL          string        `yaml:"api_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Database        string        `yaml:"database"`
	CatalogCache    string        `yaml:"catalog_cache"`
	Scanner         Scanner       `yaml:"scanner"`

	// Tokens come from the environment only, never from the YAML file.
	AccessToken  string `yaml:"-"`
	RefreshToken string `yaml:"-"`
}

// Scanner mirrors scanner.Config with YAML keys.
type Scanner struct {
	BurstThreshold  time.Duration `yaml:"burst_threshold"`
	FirstCharGrace  time.Duration `yaml:"first_char_grace"`
	AutoCommitDelay time.Duration `yaml:"auto_commit_delay"`
	MinQueryLength  int           `yaml:"min_query_length"`
}

// ScannerConfig converts to the detector's config, defaults applied.
func (s Scanner) ScannerConfig() scanner.Config {
	return scanner.Config{
		BurstThreshold:  s.BurstThreshold,
		FirstCharGrace:  s.FirstCharGrace,
		AutoCommitDelay: s.AutoCommitDelay,
		MinQueryLength:  s.MinQueryLength,
	}.WithDefaults()
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	d := scanner.DefaultConfig()
	return Config{
		RefreshInterval: catalog.DefaultRefreshInterval,
		Database:        DefaultDatabase,
		CatalogCache:    DefaultCatalogCache,
		Scanner: Scanner{
			BurstThreshold:  d.BurstThreshold,
			FirstCharGrace:  d.FirstCharGrace,
			AutoCommitDelay: d.AutoCommitDelay,
			MinQueryLength:  d.MinQueryLength,
		},
	}
}

// Options locate the configuration sources. Empty paths are skipped.
type Options struct {
	// Path is the YAML file. It must exist when set.
	Path string

	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string

	// Getenv reads the process environment. Default: os.Getenv.
	Getenv func(string) string
}

// Load builds the configuration from opts.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", opts.Path, err)
		}
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		var err error
		dotenv, err = godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
		if dotenv == nil {
			dotenv = map[string]string{}
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if v := lookup(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := lookup(EnvDatabase); v != "" {
		cfg.Database = v
	}
	cfg.AccessToken = lookup(EnvAccessToken)
	cfg.RefreshToken = lookup(EnvRefreshToken)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML decodes strictly: unknown keys are errors.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges. Zero scanner fields are filled with
// defaults first.
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if err := c.Scanner.ScannerConfig().Validate(); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	return nil
}
