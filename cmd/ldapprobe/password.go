package main

import (
	"bufio"
	"io"
)

// passwordEnvVar is checked for the bind password when the flag is absent.
const passwordEnvVar = "LDAP_PASSWD"

// passwordReader is an interface for reading passwords.
// This allows for testing without actual terminal input.
type passwordReader interface {
	ReadPassword() (string, error)
}

// termPasswordReader reads passwords from the terminal.
type termPasswordReader struct {
	stdin io.Reader
}

func (t *termPasswordReader) ReadPassword() (string, error) {
	return readPasswordFromStdin(t.stdin)
}

// readPasswordFromStdin reads a password from stdin.
// For simplicity, this reads until newline. In production, you would
// disable echo using terminal-specific syscalls.
func readPasswordFromStdin(r io.Reader) (string, error) {
	reader := bufio.NewReader(r)
	password, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	// Trim newline
	if len(password) > 0 && password[len(password)-1] == '\n' {
		password = password[:len(password)-1]
	}
	if len(password) > 0 && password[len(password)-1] == '\r' {
		password = password[:len(password)-1]
	}
	return password, nil
}
