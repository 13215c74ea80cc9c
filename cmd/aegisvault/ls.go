package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

var lsRecursive bool

var lsCmd = &cobra.Command{
	Use:   "ls <vault> [path]",
	Short: "List a vault directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "/"
		if len(args) == 2 {
			dir = args[1]
		}
		return withVault(args[0], func(s *aegisvault.Session) error {
			return listDir(os.Stdout, s, dir, lsRecursive)
		})
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "List subdirectories too")
	rootCmd.AddCommand(lsCmd)
}

func listDir(out io.Writer, s *aegisvault.Session, dir string, recursive bool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if recursive {
		return s.Walk(dir, func(p string, e aegisvault.Entry) error {
			if e.IsRoot() {
				return nil
			}
			writeEntry(w, p, e)
			return nil
		})
	}

	entries, err := s.List(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		writeEntry(w, e.Name, e)
	}
	return nil
}

func writeEntry(w io.Writer, name string, e aegisvault.Entry) {
	size := fmt.Sprintf("%d", e.Size)
	if e.IsDir {
		size = "-"
		name = strings.TrimSuffix(name, "/") + "/"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\n", size, e.ModifiedAt.Local().Format("2006-01-02 15:04"), name)
}
