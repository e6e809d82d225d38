// Package config provides configuration management for the members engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaKeyAttr is the attribute every extracted node is keyed by.
const SchemaKeyAttr = "id"

// DefaultBase is the published location of the members documents.
const DefaultBase = "http://data.openaustralia.org/members"

// Configuration validation errors.
var (
	ErrMissingBase         = errors.New("source.base is required")
	ErrInvalidTimeout      = errors.New("source.timeout_sec must be non-negative")
	ErrInvalidMaxEntries   = errors.New("cache.max_entries must be non-negative")
	ErrInvalidTTL          = errors.New("cache.ttl_sec must be non-negative")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrEmptySchemaTag      = errors.New("extract.schema contains an empty node tag")
	ErrEmptySchemaAttrList = errors.New("extract.schema entry lists no attributes")
	ErrSchemaMissingKey    = errors.New("extract.schema entry must list the id attribute")
	ErrMissingStorePath    = errors.New("store.path is required")
)

// Config represents the complete members configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Cache   CacheConfig   `yaml:"cache"`
	Extract ExtractConfig `yaml:"extract"`
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
}

// SourceConfig locates the XML documents.
type SourceConfig struct {
	Base       string `yaml:"base"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// IsRemote reports whether Base is a network location.
func (s *SourceConfig) IsRemote() bool {
	return strings.Contains(s.Base, "://")
}

// GetTimeout returns the HTTP timeout; zero means none.
func (s *SourceConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// CacheConfig controls the per-engine document cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
	TTLSec     int  `yaml:"ttl_sec"`
}

// GetTTL returns the entry lifetime; zero means entries never expire.
func (c *CacheConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// ExtractConfig controls how XML nodes become records.
type ExtractConfig struct {
	// Schema maps a node tag to the attribute names kept as columns.
	// Tags without an entry keep every attribute. Every entry lists "id".
	Schema           map[string][]string `yaml:"schema"`
	NormalizeUnicode bool                `yaml:"normalize_unicode"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig locates the SQLite database that receives offices.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Source:  SourceConfig{Base: DefaultBase},
		Extract: ExtractConfig{NormalizeUnicode: true},
		Logging: LoggingConfig{Level: "info"},
		Store:   StoreConfig{Path: "members.db"},
	}
}

// LoadConfig loads configuration from a YAML file on top of Default.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to a YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.Base) == "" {
		return ErrMissingBase
	}

	if c.Source.TimeoutSec < 0 {
		return ErrInvalidTimeout
	}

	if c.Cache.MaxEntries < 0 {
		return ErrInvalidMaxEntries
	}

	if c.Cache.TTLSec < 0 {
		return ErrInvalidTTL
	}

	for tag, attrs := range c.Extract.Schema {
		if strings.TrimSpace(tag) == "" {
			return ErrEmptySchemaTag
		}

		if len(attrs) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptySchemaAttrList, tag)
		}

		if !slices.Contains(attrs, SchemaKeyAttr) {
			return fmt.Errorf("%w: %s", ErrSchemaMissingKey, tag)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Store.Path == "" {
		return ErrMissingStorePath
	}

	return nil
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Base: %s, Cache: %t, MaxEntries: %d, Level: %s}",
		c.Source.Base,
		c.Cache.Enabled,
		c.Cache.MaxEntries,
		c.Logging.Level,
	)
}
