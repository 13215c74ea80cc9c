package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

var restoreForce bool

var backupCmd = &cobra.Command{
	Use:   "backup <vault> [dir]",
	Short: "Copy a closed vault to a timestamped backup file",
	Long: `Copy a vault file byte for byte to <dir>/<name>.<timestamp>.bak. The
backup stays encrypted under the same password. The default directory is
the vault's own directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Dir(args[0])
		if len(args) == 2 {
			dir = args[1]
		}
		out, err := aegisvault.Backup(args[0], dir)
		if err != nil {
			return err
		}
		printSuccess("Backup written to %s", out)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup> <vault>",
	Short: "Replace a vault with a backup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !restoreForce {
			return fmt.Errorf("restore overwrites %s; pass --force to confirm", args[1])
		}
		if err := aegisvault.Restore(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Restored %s from %s", args[1], args[0])
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Overwrite the target vault")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
