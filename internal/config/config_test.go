package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.URL != "ldap://127.0.0.1:10389" {
		t.Errorf("unexpected default URL %q", cfg.Server.URL)
	}
	if cfg.Server.BindDN != "login" {
		t.Errorf("unexpected default bind DN %q", cfg.Server.BindDN)
	}
	if len(cfg.Search.BaseDNs) != 1 || cfg.Search.BaseDNs[0] != "cn=fds,ou=tre" {
		t.Errorf("unexpected default base DNs %v", cfg.Search.BaseDNs)
	}
	if cfg.Search.Filter != "(objectclass=*)" {
		t.Errorf("unexpected default filter %q", cfg.Search.Filter)
	}
	if cfg.Search.Timeout.Std() != time.Second || cfg.Search.Rounds != 1 {
		t.Errorf("unexpected defaults: timeout=%v rounds=%d", cfg.Search.Timeout, cfg.Search.Rounds)
	}
	if cfg.Server.BindTimeout.Std() != 10*time.Second {
		t.Errorf("unexpected default bind timeout %v", cfg.Server.BindTimeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{"with port", "ldap://127.0.0.1:10389", "127.0.0.1:10389", nil},
		{"without port", "ldap://ldap.example.com", "ldap.example.com:389", nil},
		{"empty", "", "", ErrMissingURL},
		{"wrong scheme", "ldaps://h:636", "", ErrBadScheme},
		{"http scheme", "http://h", "", ErrBadScheme},
		{"no host", "ldap://", "", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.URL = tt.url

			got, err := cfg.Address()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Address failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no base DNs", func(c *Config) { c.Search.BaseDNs = nil }, ErrNoBaseDNs},
		{"blank base DN", func(c *Config) { c.Search.BaseDNs = []string{"  "} }, ErrNoBaseDNs},
		{"zero rounds", func(c *Config) { c.Search.Rounds = 0 }, ErrInvalidRounds},
		{"negative timeout", func(c *Config) { c.Search.Timeout = Duration(-time.Second) }, ErrBadTimeout},
		{"zero bind timeout", func(c *Config) { c.Server.BindTimeout = 0 }, ErrBadTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("bad filter", func(t *testing.T) {
		cfg := Default()
		cfg.Search.Filter = "(cn"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unbalanced filter")
		}
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")

	content := `
server:
  url: ldap://directory.example.com:389
  bindDN: cn=probe,dc=example,dc=com
search:
  baseDNs:
    - ou=people,dc=example,dc=com
    - ou=groups,dc=example,dc=com
  timeout: 2s
  rounds: 3
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "ldap://directory.example.com:389" {
		t.Errorf("unexpected URL %q", cfg.Server.URL)
	}
	if len(cfg.Search.BaseDNs) != 2 {
		t.Errorf("unexpected base DNs %v", cfg.Search.BaseDNs)
	}
	if cfg.Search.Timeout.Std() != 2*time.Second || cfg.Search.Rounds != 3 {
		t.Errorf("unexpected search settings: %+v", cfg.Search)
	}
	// Fields absent from the file keep defaults
	if cfg.Search.Filter != DefaultFilter {
		t.Errorf("filter default not preserved: %q", cfg.Search.Filter)
	}
	if cfg.Server.BindTimeout.Std() != DefaultBindTimeout {
		t.Errorf("bind timeout default not preserved: %v", cfg.Server.BindTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging settings: %+v", cfg.Logging)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/probe.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
