package cmd

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"hrvault/internal/vault"
)

// passphraseEnvVar supplies the passphrase non-interactively, for
// scripted backups and CI.
const passphraseEnvVar = "HRVAULT_PASSPHRASE"

// readPassphrase collects the passphrase from the environment or the
// terminal. Prompts go to stderr so stdout stays clean for structured
// output. When confirmNew is true the passphrase is asked for twice,
// which catches typos before they seal an artifact nobody can open.
func readPassphrase(confirmNew bool) (string, error) {
	if env := os.Getenv(passphraseEnvVar); env != "" {
		return env, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", vault.NewValidationError(
			fmt.Sprintf("no passphrase available: set %s or run interactively", passphraseEnvVar), nil)
	}

	first, err := promptSecret(fd, "Passphrase: ")
	if err != nil {
		return "", err
	}
	if len(first) == 0 {
		return "", vault.NewValidationError("passphrase must not be empty", nil)
	}

	if confirmNew {
		second, err := promptSecret(fd, "Confirm passphrase: ")
		if err != nil {
			vault.ZeroBytes(first)
			return "", err
		}
		match := string(first) == string(second)
		vault.ZeroBytes(second)
		if !match {
			vault.ZeroBytes(first)
			return "", vault.NewValidationError("passphrases do not match", nil)
		}
	}

	passphrase := string(first)
	vault.ZeroBytes(first)
	return passphrase, nil
}

func promptSecret(fd int, prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, vault.NewIoError("failed to read passphrase from terminal", err)
	}
	return secret, nil
}
