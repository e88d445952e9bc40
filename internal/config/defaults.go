package config

import "time"

// Default values for the probe configuration.
const (
	DefaultURL         = "ldap://127.0.0.1:10389"
	DefaultBindDN      = "login"
	DefaultBaseDN      = "cn=fds,ou=tre"
	DefaultFilter      = "(objectclass=*)"
	DefaultTimeout     = 1 * time.Second
	DefaultBindTimeout = 10 * time.Second
	DefaultRounds      = 1
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:         DefaultURL,
			BindDN:      DefaultBindDN,
			BindTimeout: Duration(DefaultBindTimeout),
		},
		Search: SearchConfig{
			BaseDNs: []string{DefaultBaseDN},
			Filter:  DefaultFilter,
			Timeout: Duration(DefaultTimeout),
			Rounds:  DefaultRounds,
		},
		Logging: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
