package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
	"github.com/aegisvault/aegisvault/internal/config"
)

var (
	cfgFile      string
	experimental bool
	logLevel     string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aegisvault",
	Short: "Password-protected encrypted file vaults",
	Long: `aegisvault stores a directory tree inside a single encrypted container
file. Everything is encrypted locally with a key derived from your password.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default aegisvault.yaml in . or ~/.config/aegisvault)")
	rootCmd.PersistentFlags().BoolVar(&experimental, "experimental", false,
		"Enable every experimental cipher, cascade, KDF and hash")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	if logLevel != "" {
		loader.Viper().Set("log.level", logLevel)
	}
	if experimental {
		for _, key := range []string{
			"experimental.enabled",
			"experimental.ciphers",
			"experimental.cascades",
			"experimental.alternative_kdfs",
			"experimental.alternative_hashes",
		} {
			loader.Viper().Set(key, true)
		}
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}
	logger = newLogger(cfg, os.Stderr)
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("config loaded")
	}
	return nil
}

func newLogger(c *config.Config, w io.Writer) zerolog.Logger {
	if c.Log.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: color.NoColor}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(c.LogLevel())
}

// sessionOptions returns library options and warns about experimental
// algorithms chosen for new vaults
func sessionOptions(forCreate bool) (aegisvault.Options, error) {
	opts, err := cfg.Options(logger)
	if err != nil {
		return aegisvault.Options{}, err
	}
	if forCreate {
		reg := aegisvault.NewRegistry(opts.Experimental)
		if c, err := reg.Cipher(opts.Cipher); err == nil && c.Experimental() {
			printWarning("cipher %s is experimental", c.Name())
		}
		if k, err := reg.KDF(opts.KDF); err == nil && k.Experimental() {
			printWarning("key derivation function %s is experimental", k.Name())
		}
	}
	return opts, nil
}

// openVault prompts for the password and returns a session with path open
func openVault(path string) (*aegisvault.Session, error) {
	opts, err := sessionOptions(false)
	if err != nil {
		return nil, err
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return nil, err
	}
	s := aegisvault.NewSession(opts)
	if err := s.OpenVault(path, password); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

// withVault opens path, runs fn and closes the vault
func withVault(path string, fn func(*aegisvault.Session) error) error {
	s, err := openVault(path)
	if err != nil {
		return err
	}
	err = fn(s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}
