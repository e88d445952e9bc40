// Package config provides configuration parsing and validation for the probe.
package config

// Config holds the complete probe configuration.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Search  SearchConfig `yaml:"search"`
	Logging LogConfig    `yaml:"logging"`
}

// ServerConfig holds connection and authentication settings.
type ServerConfig struct {
	// URL is the LDAP server URL (ldap://host:port)
	URL string `yaml:"url"`
	// BindDN is the DN to bind as
	BindDN string `yaml:"bindDN"`
	// Password is the simple bind password
	Password string `yaml:"password"`
	// BindTimeout bounds the wait for the bind response
	BindTimeout Duration `yaml:"bindTimeout"`
}

// SearchConfig holds search loop settings.
type SearchConfig struct {
	// BaseDNs are the search bases, probed in order each round
	BaseDNs []string `yaml:"baseDNs"`
	// Filter is the RFC 4515 search filter string
	Filter string `yaml:"filter"`
	// Attributes are the attribute names to request
	Attributes []string `yaml:"attributes"`
	// Timeout bounds the wait for each search before it is abandoned
	Timeout Duration `yaml:"timeout"`
	// Rounds is the number of passes over the base DN list
	Rounds int `yaml:"rounds"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
