// Package config loads seedvault settings from seedvault.yaml, SEEDVAULT_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/signer"
	"github.com/illarion/seedvault/internal/vault"
)

const (
	AppName        = "seedvault"
	DatabaseFile   = "seedvault.db"
	StoreFile      = "file"
	StoreKeyring   = "keyring"
	DirPermSecure  = 0700
	FilePermSecure = 0600
)

var ErrInvalidConfig = errors.New("invalid configuration")

type KDFConfig struct {
	Time        uint32 `mapstructure:"time" yaml:"time"`
	MemoryKiB   uint32 `mapstructure:"memory_kib" yaml:"memory_kib"`
	Parallelism uint8  `mapstructure:"parallelism" yaml:"parallelism"`
}

type PasswordConfig struct {
	MinLength    int  `mapstructure:"min_length" yaml:"min_length"`
	RequireMixed bool `mapstructure:"require_mixed" yaml:"require_mixed"`
}

type LoginConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

// Config holds every seedvault setting
type Config struct {
	APIURL       string         `mapstructure:"api_url" yaml:"api_url"`
	Domain       string         `mapstructure:"domain" yaml:"domain"`
	DataDir      string         `mapstructure:"data_dir" yaml:"data_dir"`
	SessionStore string         `mapstructure:"session_store" yaml:"session_store"`
	Scheme       string         `mapstructure:"scheme" yaml:"scheme"`
	Timeout      time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	KDF          KDFConfig      `mapstructure:"kdf" yaml:"kdf"`
	Password     PasswordConfig `mapstructure:"password" yaml:"password"`
	Login        LoginConfig    `mapstructure:"login" yaml:"login"`
	LogLevel     string         `mapstructure:"log_level" yaml:"log_level"`
	LogPretty    bool           `mapstructure:"log_pretty" yaml:"log_pretty"`
}

// Defaults returns the built-in values of every key
func Defaults() map[string]any {
	kdf := crypto.DefaultKDFParams()
	return map[string]any{
		"api_url":                "http://localhost:8080/api",
		"domain":                 "localhost",
		"data_dir":               defaultDataDir(),
		"session_store":          StoreFile,
		"scheme":                 signer.Ed25519Name,
		"timeout":                30 * time.Second,
		"kdf.time":               kdf.Time,
		"kdf.memory_kib":         kdf.MemoryKiB,
		"kdf.parallelism":        kdf.Parallelism,
		"password.min_length":    8,
		"password.require_mixed": true,
		"login.max_attempts":     5,
		"login.window":           15 * time.Minute,
		"log_level":              "warn",
		"log_pretty":             false,
	}
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"api-url":       "api_url",
	"data-dir":      "data_dir",
	"session-store": "session_store",
	"log-level":     "log_level",
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(dir, AppName)
}

// DefaultPath returns the user config file location
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(dir, AppName, AppName+".yaml"), nil
}

// Load reads the configuration. configFile overrides the search path when
// non-empty; cmd may be nil.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if path, err := DefaultPath(); err == nil {
		v.AddConfigPath(filepath.Dir(path))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless it was asked for explicitly
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for flag, key := range flagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("%w: api_url is required", ErrInvalidConfig)
	}
	if c.Domain == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidConfig)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	switch c.SessionStore {
	case StoreFile, StoreKeyring:
	default:
		return fmt.Errorf("%w: session_store must be %q or %q", ErrInvalidConfig, StoreFile, StoreKeyring)
	}
	if _, err := signer.ByName(c.Scheme); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.KDFParams().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Login.MaxAttempts < 1 {
		return fmt.Errorf("%w: login.max_attempts must be positive", ErrInvalidConfig)
	}
	return nil
}

// DatabasePath returns the location of the vault database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

// KDFParams returns the parameters for new encryptions
func (c *Config) KDFParams() crypto.KDFParams {
	return crypto.KDFParams{
		Algorithm:   crypto.AlgArgon2id,
		Time:        c.KDF.Time,
		MemoryKiB:   c.KDF.MemoryKiB,
		Parallelism: c.KDF.Parallelism,
		KeyLen:      crypto.KeySize,
	}
}

// PasswordPolicy returns the policy applied to new passwords
func (c *Config) PasswordPolicy() vault.PasswordPolicy {
	policy := vault.DefaultPasswordPolicy()
	policy.MinLength = c.Password.MinLength
	policy.RequireMixed = c.Password.RequireMixed
	return policy
}

// Write saves c as YAML to path, creating the directory
func Write(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermSecure); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	return os.WriteFile(path, data, FilePermSecure)
}
