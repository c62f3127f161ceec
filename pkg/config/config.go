// Package config loads the optional onsave configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/onsave/onsave/pkg/rule"
	"github.com/onsave/onsave/pkg/schema"
)

//go:generate go run ../../internal/schemagen -o config.v1beta1.json

var (
	//go:embed config.v1beta1.json
	schemaJSON []byte

	// DefaultValidator validates configuration against the JSON schema.
	DefaultValidator = schema.MustNewValidator(schemaJSON)

	// ErrConfigNotFound is returned when the config file does not exist.
	ErrConfigNotFound = errors.New("config not found")
)

const (
	// APIVersion is the accepted apiVersion value.
	APIVersion = "onsave.dev/v1beta1"
	// Kind is the accepted kind value.
	Kind = "Configuration"

	// DefaultShell is the shell used to invoke scripts when none is set.
	DefaultShell = "bash -c"
	// DefaultDebounce is the event coalescing window when none is set.
	DefaultDebounce = "50ms"
)

// Config holds the file-level configuration for onsave.
type Config struct {
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// Shell is the command prefix scripts are invoked through.
	Shell string `json:"shell,omitempty" jsonschema:"title=Shell"`
	// Then is the path of a script to run after each successful run.
	Then string `json:"then,omitempty" jsonschema:"title=Then Script"`
	// Debounce is the event coalescing window, as a Go duration string.
	Debounce string `json:"debounce,omitempty" jsonschema:"title=Debounce"`
	// Exclude lists CEL expressions; a changed path matching any of them
	// never triggers a run.
	Exclude []string `json:"exclude,omitempty" jsonschema:"title=Exclude Rules"`
}

// JSONSchemaExtend pins apiVersion and kind to their accepted values.
func (Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	if v, ok := jss.Properties.Get("apiVersion"); ok {
		v.Enum = []any{APIVersion}
	}
	if v, ok := jss.Properties.Get("kind"); ok {
		v.Enum = []any{Kind}
	}
}

// NewConfig creates a new [Config] with default values.
func NewConfig() *Config {
	c := &Config{
		APIVersion: APIVersion,
		Kind:       Kind,
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes empty fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Shell == "" {
		c.Shell = DefaultShell
	}

	if c.Debounce == "" {
		c.Debounce = DefaultDebounce
	}
}

// GetDebounce parses the configured debounce window.
func (c *Config) GetDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("parse debounce %q: %w", c.Debounce, err)
	}

	return d, nil
}

// CompileExcludes compiles the configured exclusion expressions.
func (c *Config) CompileExcludes() ([]*rule.Rule, error) {
	rules := make([]*rule.Rule, 0, len(c.Exclude))

	for _, match := range c.Exclude {
		r, err := rule.New(match)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}

		rules = append(rules, r)
	}

	return rules, nil
}

// LoadFile reads, validates, and decodes a config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path comes from the user's own flags.
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	return Load(data)
}

// Load validates and decodes config data.
func Load(data []byte) (*Config, error) {
	// Decode loosely first so schema validation sees the raw document.
	var anyConfig any

	err := yaml.Unmarshal(data, &anyConfig)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	err = DefaultValidator.Validate(anyConfig)
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg := &Config{}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.EnsureDefaults()

	return cfg, nil
}

// GetPath returns the config file path, following XDG conventions.
func GetPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			return filepath.Join(os.TempDir(), "onsave", "config.yaml")
		}

		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "onsave", "config.yaml")
}
