package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/probelab/ldapprobe/internal/filter"
)

// DefaultLDAPPort is used when the server URL omits a port.
const DefaultLDAPPort = "389"

// Validation errors
var (
	ErrMissingURL    = errors.New("config: server URL is required")
	ErrInvalidURL    = errors.New("config: invalid server URL")
	ErrBadScheme     = errors.New("config: server URL scheme must be ldap")
	ErrNoBaseDNs     = errors.New("config: at least one base DN is required")
	ErrInvalidRounds = errors.New("config: rounds must be at least 1")
	ErrBadTimeout    = errors.New("config: timeout must be positive")
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := c.Address(); err != nil {
		return err
	}

	if len(c.Search.BaseDNs) == 0 {
		return ErrNoBaseDNs
	}
	for _, base := range c.Search.BaseDNs {
		if strings.TrimSpace(base) == "" {
			return ErrNoBaseDNs
		}
	}

	if c.Search.Rounds < 1 {
		return ErrInvalidRounds
	}
	if c.Search.Timeout.Std() <= 0 || c.Server.BindTimeout.Std() <= 0 {
		return ErrBadTimeout
	}

	if _, err := filter.Parse(c.Search.Filter); err != nil {
		return fmt.Errorf("config: invalid search filter %q: %w", c.Search.Filter, err)
	}

	return nil
}

// Address resolves the server URL to a host:port dial address.
func (c *Config) Address() (string, error) {
	if c.Server.URL == "" {
		return "", ErrMissingURL
	}

	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "ldap" {
		return "", fmt.Errorf("%w: %q", ErrBadScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, DefaultLDAPPort)
	}

	return host, nil
}
