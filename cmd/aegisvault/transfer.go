package main

import (
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
	"github.com/aegisvault/aegisvault/internal/hostfs"
)

var transferVerbose bool

var importCmd = &cobra.Command{
	Use:   "import <vault> <host-path> [vault-dir]",
	Short: "Copy a host file or directory tree into a vault",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst := "/"
		if len(args) == 3 {
			dst = args[2]
		}
		abs, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		src := filepath.ToSlash(abs)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return withVault(args[0], func(s *aegisvault.Session) error {
			n, err := s.Import(ctx, hostfs.New(""), src, dst, progressPrinter())
			printInfo("%d entries imported", n)
			return err
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <vault> <vault-path> <host-dir>",
	Short: "Copy a vault file or directory tree to the host",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst := filepath.ToSlash(filepath.Clean(args[2]))
		if err := os.MkdirAll(args[2], 0o700); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return withVault(args[0], func(s *aegisvault.Session) error {
			n, err := s.Export(ctx, args[1], hostfs.New(""), dst, progressPrinter())
			printInfo("%d entries exported", n)
			return err
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{importCmd, exportCmd} {
		c.Flags().BoolVarP(&transferVerbose, "verbose", "v", false, "Print each copied path")
		rootCmd.AddCommand(c)
	}
}

func progressPrinter() aegisvault.ProgressFunc {
	if !transferVerbose {
		return nil
	}
	return func(p aegisvault.TransferProgress) {
		printInfo("%5d  %s", p.Items, p.Path)
	}
}
