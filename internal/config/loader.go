package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AEGISVAULT_VAULT_CIPHER.
const EnvPrefix = "AEGISVAULT"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty configPath searches the
// default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		v:          viper.New(),
	}
}

// Viper exposes the underlying instance so flags can be bound to keys.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads defaults, then the config file, then the environment, and
// validates the result.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults(DefaultConfig())

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		l.v.SetConfigName("aegisvault")
		for _, dir := range defaultDirs() {
			l.v.AddConfigPath(dir)
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", l.v.ConfigFileUsed(), err)
			}
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func (l *Loader) setDefaults(d *Config) {
	l.v.SetDefault("vault.cipher", d.Vault.Cipher)
	l.v.SetDefault("vault.kdf", d.Vault.KDF)
	l.v.SetDefault("vault.auto_lock", d.Vault.AutoLock)
	l.v.SetDefault("vault.max_metadata_size", d.Vault.MaxMetadataSize)

	l.v.SetDefault("experimental.enabled", d.Experimental.Enabled)
	l.v.SetDefault("experimental.ciphers", d.Experimental.Ciphers)
	l.v.SetDefault("experimental.cascades", d.Experimental.Cascades)
	l.v.SetDefault("experimental.alternative_kdfs", d.Experimental.AlternativeKDFs)
	l.v.SetDefault("experimental.alternative_hashes", d.Experimental.AlternativeHashes)
	l.v.SetDefault("experimental.self_test_on_startup", d.Experimental.SelfTestOnStartup)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
}

// defaultDirs returns the directories searched for aegisvault.{yaml,json}.
func defaultDirs() []string {
	dirs := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".config", "aegisvault"))
	}
	return dirs
}
