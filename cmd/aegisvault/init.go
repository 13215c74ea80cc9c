package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

var initCmd = &cobra.Command{
	Use:   "init <vault>",
	Short: "Create a new empty vault",
	Long: `Create a new vault file protected by a password.

The cipher and key derivation function come from the config file
(vault.cipher, vault.kdf) or the AEGISVAULT_VAULT_CIPHER and
AEGISVAULT_VAULT_KDF environment variables.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	opts, err := sessionOptions(true)
	if err != nil {
		return err
	}
	password, err := readNewPassword("Password: ")
	if err != nil {
		return err
	}

	s := aegisvault.NewSession(opts)
	if err := s.CreateVault(path, password); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer s.Close()

	info, err := s.Info()
	if err != nil {
		return err
	}
	printSuccess("Created vault %s (%s, %s)", path, info.Cipher, info.KDF)
	return nil
}
