package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

var infoHash string

var infoCmd = &cobra.Command{
	Use:   "info <vault>",
	Short: "Show container details and a fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, ok := aegisvault.ParseHashID(infoHash)
		if !ok {
			return fmt.Errorf("unknown hash %q", infoHash)
		}
		return withVault(args[0], func(s *aegisvault.Session) error {
			info, err := s.Info()
			if err != nil {
				return err
			}
			sum, err := s.Fingerprint(id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Path:\t%s\n", info.Path)
			fmt.Fprintf(w, "Format version:\t%d\n", info.Version)
			fmt.Fprintf(w, "Cipher:\t%s\n", info.Cipher)
			fmt.Fprintf(w, "KDF:\t%s\n", info.KDF)
			fmt.Fprintf(w, "Blobs:\t%d\n", info.Blobs)
			fmt.Fprintf(w, "Metadata size:\t%d bytes\n", info.MetadataSize)
			fmt.Fprintf(w, "Fingerprint (%s):\t%s\n", id, hex.EncodeToString(sum))
			return w.Flush()
		})
	},
}

var ciphersCmd = &cobra.Command{
	Use:   "ciphers",
	Short: "List the algorithms enabled by the current config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions(false)
		if err != nil {
			return err
		}
		reg := aegisvault.NewRegistry(opts.Experimental)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME\tEXPERIMENTAL")
		for _, c := range reg.Ciphers() {
			fmt.Fprintf(w, "cipher\t%s\t%t\n", c.Name(), c.Experimental())
		}
		for _, k := range reg.KDFs() {
			fmt.Fprintf(w, "kdf\t%s\t%t\n", k.Name(), k.Experimental())
		}
		for _, h := range reg.Hashes() {
			fmt.Fprintf(w, "hash\t%s\t%t\n", h.Name(), h.Experimental())
		}
		return w.Flush()
	},
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run known-answer checks on every enabled algorithm",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions(false)
		if err != nil {
			return err
		}
		return runSelfTest(cmd.Context(), aegisvault.NewRegistry(opts.Experimental))
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoHash, "hash", aegisvault.HashSHA256.String(), "Fingerprint hash")
	rootCmd.AddCommand(infoCmd, ciphersCmd, selftestCmd)
}

func runSelfTest(ctx context.Context, reg *aegisvault.Registry) error {
	report, err := aegisvault.SelfTest(ctx, reg)
	for _, r := range report.Results {
		switch {
		case !r.Passed():
			errorColor.Printf("FAIL")
			fmt.Printf("  %s: %v\n", r.Name, r.Err)
		case r.Warning != "":
			warningColor.Printf("WARN")
			fmt.Printf("  %s: %s\n", r.Name, r.Warning)
		default:
			successColor.Printf("ok  ")
			fmt.Printf("  %s (%s)\n", r.Name, r.Duration.Round(time.Microsecond))
		}
	}
	if err != nil {
		return err
	}
	printInfo("random bit ratio %.4f", report.BitRatio)
	return nil
}
