package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
	"golang.org/x/text/unicode/norm"

	"github.com/aegisvault/aegisvault"
)

// PasswordEnv supplies the password non-interactively, for scripts
const PasswordEnv = "AEGISVAULT_PASSWORD"

// readPassword returns the NFC-normalized password from the environment or
// the terminal. Callers own the slice; the library wipes it.
func readPassword(prompt string) ([]byte, error) {
	if env, ok := os.LookupEnv(PasswordEnv); ok {
		return normalize([]byte(env)), nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, fmt.Errorf("stdin is not a terminal; set %s to supply the password", PasswordEnv)
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return normalize(raw), nil
}

// readNewPassword prompts twice and warns about weak choices
func readNewPassword(prompt string) ([]byte, error) {
	pw, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}
	if _, env := os.LookupEnv(PasswordEnv); !env {
		confirm, err := readPassword("Confirm " + prompt)
		if err != nil {
			memguard.WipeBytes(pw)
			return nil, err
		}
		match := subtle.ConstantTimeCompare(pw, confirm) == 1
		memguard.WipeBytes(confirm)
		if !match {
			memguard.WipeBytes(pw)
			return nil, errors.New("passwords do not match")
		}
	}

	if s := aegisvault.EvaluatePassword(pw); s <= aegisvault.Weak {
		printWarning("password strength is %s (about %.0f bits)", s, aegisvault.Entropy(pw))
	}
	return pw, nil
}

// normalize returns a fresh NFC copy of raw and wipes raw
func normalize(raw []byte) []byte {
	out := norm.NFC.Append(nil, raw...)
	memguard.WipeBytes(raw)
	return out
}
