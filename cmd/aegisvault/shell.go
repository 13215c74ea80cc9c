package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/aegisvault/aegisvault"
)

var shellCmd = &cobra.Command{
	Use:   "shell <vault>",
	Short: "Open a vault and run commands interactively",
	Long: `Open a vault once and run commands against it until exit. The vault
locks itself after vault.auto_lock of inactivity; the shell then exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openVault(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		sh := &shell{s: s, cwd: "/", out: os.Stdout}
		if err := s.SetAutoLock(cfg.Vault.AutoLock, sh.locked); err != nil {
			return err
		}
		return sh.run(os.Stdin)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shell struct {
	s        *aegisvault.Session
	cwd      string
	out      io.Writer
	isLocked atomic.Bool
}

var errExit = errors.New("exit")

func (sh *shell) locked() {
	sh.isLocked.Store(true)
	fmt.Fprintln(os.Stderr)
	printWarning("vault locked after inactivity")
}

func (sh *shell) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		if sh.isLocked.Load() || !sh.s.IsOpen() {
			return nil
		}
		fmt.Fprintf(sh.out, "%s> ", sh.cwd)
		if !sc.Scan() {
			fmt.Fprintln(sh.out)
			return sc.Err()
		}
		if sh.isLocked.Load() {
			return nil
		}
		args := strings.Fields(sc.Text())
		if len(args) == 0 {
			continue
		}
		err := sh.exec(args[0], args[1:])
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			printError("%v", err)
		}
	}
}

func (sh *shell) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(sh.cwd, p)
}

// arg returns the i-th argument resolved against the working directory,
// or the working directory itself when it is missing
func (sh *shell) arg(args []string, i int) string {
	if i < len(args) {
		return sh.abs(args[i])
	}
	return sh.cwd
}

func (sh *shell) exec(name string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d argument(s)", name, n)
		}
		return nil
	}

	switch name {
	case "exit", "quit":
		return errExit
	case "help":
		fmt.Fprintln(sh.out, "commands: ls [path], cd <dir>, pwd, mkdir <dir>, cat <file>,")
		fmt.Fprintln(sh.out, "          put <file> <text...>, rm <path>, mv <src> <dst>, info, exit")
		return nil
	case "pwd":
		fmt.Fprintln(sh.out, sh.cwd)
		return nil
	case "ls":
		return listDir(sh.out, sh.s, sh.arg(args, 0), false)
	case "cd":
		dir := sh.arg(args, 0)
		if len(args) == 0 {
			dir = "/"
		}
		e, err := sh.s.Stat(dir)
		if err != nil {
			return err
		}
		if !e.IsDir {
			return fmt.Errorf("cd: %s is not a directory", dir)
		}
		sh.cwd = dir
		return nil
	case "mkdir":
		if err := need(1); err != nil {
			return err
		}
		_, err := sh.s.MkdirAll(sh.abs(args[0]))
		return err
	case "cat":
		if err := need(1); err != nil {
			return err
		}
		data, err := sh.s.ReadFile(sh.abs(args[0]))
		if err != nil {
			return err
		}
		sh.out.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Fprintln(sh.out)
		}
		return nil
	case "put":
		if err := need(1); err != nil {
			return err
		}
		content := strings.Join(args[1:], " ") + "\n"
		return putContent(sh.s, sh.abs(args[0]), []byte(content), false)
	case "rm":
		if err := need(1); err != nil {
			return err
		}
		return sh.s.Delete(sh.abs(args[0]))
	case "mv":
		if err := need(2); err != nil {
			return err
		}
		return sh.s.Move(sh.abs(args[0]), sh.abs(args[1]))
	case "info":
		info, err := sh.s.Info()
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "%s: %s, %s, %d blobs\n", info.Path, info.Cipher, info.KDF, info.Blobs)
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
}
