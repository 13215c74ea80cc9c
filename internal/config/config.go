package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aegisvault/aegisvault"
)

// Config holds all application configuration.
type Config struct {
	// Defaults for new vaults and session behavior
	Vault VaultConfig `mapstructure:"vault"`

	// Experimental algorithm gates
	Experimental ExperimentalConfig `mapstructure:"experimental"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

// VaultConfig for container creation and sessions.
type VaultConfig struct {
	Cipher          string        `mapstructure:"cipher"`            // content cipher for new vaults
	KDF             string        `mapstructure:"kdf"`               // password KDF for new vaults
	AutoLock        time.Duration `mapstructure:"auto_lock"`         // idle timeout, 0 disables
	MaxMetadataSize int64         `mapstructure:"max_metadata_size"` // bytes
}

// ExperimentalConfig mirrors aegisvault.Experimental.
type ExperimentalConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	Ciphers           bool `mapstructure:"ciphers"`
	Cascades          bool `mapstructure:"cascades"`
	AlternativeKDFs   bool `mapstructure:"alternative_kdfs"`
	AlternativeHashes bool `mapstructure:"alternative_hashes"`
	SelfTestOnStartup bool `mapstructure:"self_test_on_startup"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			Cipher:          aegisvault.CipherAES.String(),
			KDF:             aegisvault.KDFArgon2id.String(),
			AutoLock:        5 * time.Minute,
			MaxMetadataSize: aegisvault.DefaultMaxMetadataSize,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Validate checks configuration validity, including that the configured
// algorithms exist and are permitted by the experimental gates.
func (c *Config) Validate() error {
	if c.Vault.AutoLock < 0 {
		return errors.New("vault.auto_lock cannot be negative")
	}
	if c.Vault.MaxMetadataSize <= 0 {
		return errors.New("vault.max_metadata_size must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	if _, err := c.Options(zerolog.Nop()); err != nil {
		return err
	}
	return nil
}

// ExperimentalOptions returns the experimental gates as library options.
func (c *Config) ExperimentalOptions() aegisvault.Experimental {
	return aegisvault.Experimental{
		Enabled:           c.Experimental.Enabled,
		Ciphers:           c.Experimental.Ciphers,
		Cascades:          c.Experimental.Cascades,
		AlternativeKDFs:   c.Experimental.AlternativeKDFs,
		AlternativeHashes: c.Experimental.AlternativeHashes,
		SelfTestOnStartup: c.Experimental.SelfTestOnStartup,
	}
}

// Options maps the config to aegisvault options using logger.
func (c *Config) Options(logger zerolog.Logger) (aegisvault.Options, error) {
	cipher, ok := aegisvault.ParseCipherID(c.Vault.Cipher)
	if !ok {
		return aegisvault.Options{}, fmt.Errorf("vault.cipher: unknown cipher %q", c.Vault.Cipher)
	}
	kdf, ok := aegisvault.ParseKDFID(c.Vault.KDF)
	if !ok {
		return aegisvault.Options{}, fmt.Errorf("vault.kdf: unknown key derivation function %q", c.Vault.KDF)
	}

	opts := aegisvault.Options{
		Cipher:          cipher,
		KDF:             kdf,
		Experimental:    c.ExperimentalOptions(),
		MaxMetadataSize: c.Vault.MaxMetadataSize,
		Logger:          logger,
	}
	if err := opts.Validate(); err != nil {
		return aegisvault.Options{}, fmt.Errorf("vault: %w", err)
	}
	return opts, nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}
