package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

// NewPasswordEnv supplies the replacement password for passwd in scripts
const NewPasswordEnv = "AEGISVAULT_NEW_PASSWORD"

var passwdCmd = &cobra.Command{
	Use:   "passwd <vault>",
	Short: "Change a vault's password",
	Long: `Change the password of a vault. The vault key is rewrapped under the
new password; file contents are not re-encrypted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}

func runPasswd(cmd *cobra.Command, args []string) error {
	path := args[0]
	opts, err := sessionOptions(false)
	if err != nil {
		return err
	}
	current, err := readPassword("Current password: ")
	if err != nil {
		return err
	}
	verify := memguard.NewBufferFromBytes(append([]byte(nil), current...))
	defer verify.Destroy()

	s := aegisvault.NewSession(opts)
	if err := s.OpenVault(path, current); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer s.Close()

	next, err := newPasswordInput()
	if err != nil {
		return err
	}
	old := append([]byte(nil), verify.Bytes()...)
	if err := s.ChangePassword(old, next); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	printSuccess("Password changed for %s", path)
	return nil
}

func newPasswordInput() ([]byte, error) {
	if env, ok := os.LookupEnv(NewPasswordEnv); ok {
		return normalize([]byte(env)), nil
	}
	if _, ok := os.LookupEnv(PasswordEnv); ok {
		return nil, fmt.Errorf("%s must be set with %s", NewPasswordEnv, PasswordEnv)
	}
	return readNewPassword("New password: ")
}
