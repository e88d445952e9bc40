// Package client implements an asynchronous LDAP client connection with
// message ID correlation, pipelined searches, and abandon support.
package client

import (
	"errors"
	"fmt"

	"github.com/probelab/ldapprobe/internal/ldap"
)

// Sentinel errors
var (
	// ErrTimeout is returned when an operation exceeds its deadline. The
	// connection stays usable; the caller abandons the operation and
	// moves on.
	ErrTimeout = errors.New("client: operation timed out")

	// ErrConnectionClosed is returned for operations on a closed
	// connection, including operations pending when the close happened.
	ErrConnectionClosed = errors.New("client: connection closed")

	// ErrIDExhausted is returned when every message ID is outstanding.
	ErrIDExhausted = errors.New("client: message IDs exhausted")
)

// ConnectError reports a failure to establish the TCP connection.
type ConnectError struct {
	Addr string
	Err  error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("client: cannot connect to %s: %v", e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// AuthError reports a failed bind. It carries the server's result code so
// callers can distinguish bad credentials from other failures.
type AuthError struct {
	Code       ldap.ResultCode
	Diagnostic string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("client: bind failed: %s (%s)", e.Code, e.Diagnostic)
	}
	return fmt.Sprintf("client: bind failed: %s", e.Code)
}

// ProtocolError reports malformed or unexpected protocol data. It is fatal
// to the connection.
type ProtocolError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client: protocol error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("client: protocol error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
