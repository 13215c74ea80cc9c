package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

var (
	mkdirParents bool
	putFile      string
	putCreate    bool
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <vault> <path>",
	Short: "Create a directory in a vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(args[0], func(s *aegisvault.Session) error {
			var err error
			if mkdirParents {
				_, err = s.MkdirAll(args[1])
			} else {
				_, err = s.CreateDirectory(args[1])
			}
			return err
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <vault> <path>",
	Short: "Print a vault file to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(args[0], func(s *aegisvault.Session) error {
			data, err := s.ReadFile(args[1])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <vault> <path>",
	Short: "Write a vault file from --file or stdin",
	Long: `Write content to a vault file, replacing an existing file.

Content is read from --file, or from stdin when --file is not given. The
password must then come from AEGISVAULT_PASSWORD.`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var rmCmd = &cobra.Command{
	Use:   "rm <vault> <path>",
	Short: "Delete a file or directory tree from a vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(args[0], func(s *aegisvault.Session) error {
			return s.Delete(args[1])
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <vault> <src> <dst>",
	Short: "Move or rename an entry in a vault",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(args[0], func(s *aegisvault.Session) error {
			return s.Move(args[1], args[2])
		})
	},
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "Create missing parent directories")
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "Host file to read content from")
	putCmd.Flags().BoolVar(&putCreate, "create", false, "Fail if the vault file already exists")
	rootCmd.AddCommand(mkdirCmd, catCmd, putCmd, rmCmd, mvCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if putFile != "" {
		data, err = os.ReadFile(putFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	return withVault(args[0], func(s *aegisvault.Session) error {
		return putContent(s, args[1], data, putCreate)
	})
}

// putContent creates or replaces the file at path
func putContent(s *aegisvault.Session, path string, data []byte, exclusive bool) error {
	exists, err := s.Exists(path)
	if err != nil {
		return err
	}
	if exists && !exclusive {
		return s.WriteFile(path, data)
	}
	_, err = s.CreateFile(path, data)
	return err
}
