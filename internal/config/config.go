// Package config holds the explicit configuration value passed to every
// component constructor. Nothing in the module reads configuration from
// ambient state; the CLI loads a Config once and hands it down.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/ir"
)

// DefaultFile is the config file name looked up by the CLI.
const DefaultFile = "intercase.yml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INTERCASE_"

// Config describes one case collection and its augmentation.
type Config struct {
	// Interfaces is the directory holding case collections.
	Interfaces string `yaml:"interfaces"`

	// Service is the collection name: <interfaces>/<service>.yml plus
	// <interfaces>/<service>/*.
	Service string `yaml:"service"`

	// Extension of the main case document. Default ".yml".
	Extension string `yaml:"extension,omitempty"`

	// Identify selects the request fields that form the identifier.
	Identify ir.Selection `yaml:"identify,omitempty"`

	Cases        CasesConfig        `yaml:"cases,omitempty"`
	Augmentation AugmentationConfig `yaml:"augmentation"`
	Codec        CodecConfig        `yaml:"codec,omitempty"`

	// Journal is the SQLite commit journal path. Empty disables the journal.
	Journal string `yaml:"journal,omitempty"`
}

// CasesConfig configures duplicate comparison.
type CasesConfig struct {
	// IgnoreFields are entry keys not compared between duplicate cases.
	IgnoreFields []string `yaml:"ignore_fields,omitempty"`
}

// AugmentationConfig locates augmentation files.
type AugmentationConfig struct {
	// Store is the compact store path.
	Store string `yaml:"store"`

	// Updates are glob patterns of update documents.
	// Default: <base>.update.yml and <base>.*.update.yml in the store
	// directory and in the staging directory, where <base> is the store file
	// name without its extension.
	Updates []string `yaml:"updates,omitempty"`

	// Staging is the directory staged update documents are written to.
	// Default: the store directory.
	Staging string `yaml:"staging,omitempty"`
}

// CodecConfig configures document parsing.
type CodecConfig struct {
	// AllowCustomTags accepts YAML tags outside the core schema.
	AllowCustomTags bool `yaml:"allow_custom_tags,omitempty"`

	// CacheSize is the parsed document cache size; -1 disables it.
	CacheSize int `yaml:"cache_size,omitempty"`
}

// Load reads the config file at path. A .env file next to it supplies
// defaults for INTERCASE_* variables; the process environment wins over it.
// Relative paths resolve against the config file directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	dir := filepath.Dir(abs)

	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	getenv := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}

	return Parse(data, dir, getenv)
}

// Parse decodes config YAML, applies environment overrides from getenv,
// resolves relative paths against dir, fills defaults and validates.
func Parse(data []byte, dir string, getenv func(string) string) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if getenv != nil {
		if err := cfg.applyEnv(getenv); err != nil {
			return nil, err
		}
	}
	cfg.resolve(dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"INTERFACES":           &c.Interfaces,
		"SERVICE":              &c.Service,
		"EXTENSION":            &c.Extension,
		"AUGMENTATION_STORE":   &c.Augmentation.Store,
		"AUGMENTATION_STAGING": &c.Augmentation.Staging,
		"JOURNAL":              &c.Journal,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(getenv(EnvPrefix + "AUGMENTATION_UPDATES")); v != "" {
		c.Augmentation.Updates = filepath.SplitList(v)
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "CODEC_ALLOW_CUSTOM_TAGS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCODEC_ALLOW_CUSTOM_TAGS: %w", EnvPrefix, err)
		}
		c.Codec.AllowCustomTags = b
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "CODEC_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCODEC_CACHE_SIZE: %w", EnvPrefix, err)
		}
		c.Codec.CacheSize = n
	}
	return nil
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || dir == "" {
			return p
		}
		return filepath.Join(dir, p)
	}

	c.Interfaces = abs(c.Interfaces)
	c.Augmentation.Store = abs(c.Augmentation.Store)
	c.Augmentation.Staging = abs(c.Augmentation.Staging)
	c.Journal = abs(c.Journal)
	for i, p := range c.Augmentation.Updates {
		c.Augmentation.Updates[i] = abs(p)
	}

	if c.Extension == "" {
		c.Extension = ".yml"
	} else if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.Augmentation.Store != "" {
		storeDir := filepath.Dir(c.Augmentation.Store)
		if c.Augmentation.Staging == "" {
			c.Augmentation.Staging = storeDir
		}
		if len(c.Augmentation.Updates) == 0 {
			c.Augmentation.Updates = c.defaultUpdates(storeDir)
		}
	}
}

// StoreBase is the store file name without its extension. Update documents
// for the store are named <base>.update.yml or <base>.<name>.update.yml.
func (c *Config) StoreBase() string {
	name := filepath.Base(c.Augmentation.Store)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (c *Config) defaultUpdates(storeDir string) []string {
	base := escapeGlob(c.StoreBase())
	dirs := []string{storeDir}
	if filepath.Clean(c.Augmentation.Staging) != filepath.Clean(storeDir) {
		dirs = append(dirs, c.Augmentation.Staging)
	}
	var patterns []string
	for _, dir := range dirs {
		patterns = append(patterns,
			filepath.Join(escapeGlob(dir), base+updateSuffix),
			filepath.Join(escapeGlob(dir), base+".*"+updateSuffix),
		)
	}
	return patterns
}

const updateSuffix = ".update.yml"

// escapeGlob quotes filepath.Match metacharacters with character classes.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Interfaces == "" {
		errs = append(errs, errors.New("interfaces is required"))
	}
	switch {
	case c.Service == "":
		errs = append(errs, errors.New("service is required"))
	case strings.ContainsAny(c.Service, `/\`) || c.Service == "." || c.Service == "..":
		errs = append(errs, fmt.Errorf("service %q must be a plain name", c.Service))
	}
	if c.Augmentation.Store == "" {
		errs = append(errs, errors.New("augmentation.store is required"))
	}
	for _, p := range c.Augmentation.Updates {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("augmentation.updates pattern %q: %w", p, err))
		}
	}
	for _, path := range append(append([]string(nil), c.Identify.Include...), c.Identify.Exclude...) {
		if path == "" || slices.Contains(strings.Split(path, "."), "") {
			errs = append(errs, fmt.Errorf("identify path %q has an empty segment", path))
		}
	}
	if c.Codec.CacheSize < -1 {
		errs = append(errs, fmt.Errorf("codec.cache_size must be -1 or more, got %d", c.Codec.CacheSize))
	}
	return errors.Join(errs...)
}

// CodecOptions returns the document codec options.
func (c *Config) CodecOptions() codec.Options {
	return codec.Options{
		AllowCustomTags: c.Codec.AllowCustomTags,
		CacheSize:       c.Codec.CacheSize,
	}
}

// Starter returns a config for a new project with paths relative to the
// config file.
func Starter(interfaces, service string) Config {
	return Config{
		Interfaces: interfaces,
		Service:    service,
		Augmentation: AugmentationConfig{
			Store: filepath.Join("augmentation", service+".yml"),
		},
	}
}

// Render encodes the config as YAML.
func (c Config) Render() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
