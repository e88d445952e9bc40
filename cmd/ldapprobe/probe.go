package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/probelab/ldapprobe/internal/config"
	"github.com/probelab/ldapprobe/internal/driver"
	"github.com/probelab/ldapprobe/internal/logging"
)

// stringSliceFlag collects repeated flag occurrences.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// timeoutFlag accepts either a bare integer, read as seconds, or a Go
// duration string like "250ms".
type timeoutFlag time.Duration

func (t *timeoutFlag) String() string {
	return time.Duration(*t).String()
}

func (t *timeoutFlag) Set(value string) error {
	if secs, err := strconv.Atoi(value); err == nil {
		*t = timeoutFlag(time.Duration(secs) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*t = timeoutFlag(d)
	return nil
}

// probeCmdImpl handles the probe command with dependency injection for testing.
type probeCmdImpl struct {
	stdout         io.Writer
	stderr         io.Writer
	passwordReader passwordReader
	getenv         func(string) string
	runDriver      func(ctx context.Context, cfg *config.Config, log logging.Logger) (*driver.Stats, error)
}

// newProbeCmdImpl creates a new probeCmdImpl with default dependencies.
func newProbeCmdImpl() *probeCmdImpl {
	return &probeCmdImpl{
		stdout:         os.Stdout,
		stderr:         os.Stderr,
		passwordReader: &termPasswordReader{stdin: os.Stdin},
		getenv:         os.Getenv,
		runDriver: func(ctx context.Context, cfg *config.Config, log logging.Logger) (*driver.Stats, error) {
			return driver.New(cfg, log).Run(ctx)
		},
	}
}

// probeCmd handles the probe command.
func (p *probeCmdImpl) probeCmd(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(p.stderr)

	configPath := fs.String("config", "", "Path to YAML configuration file")
	url := fs.String("H", config.DefaultURL, "LDAP server URL")
	bindDN := fs.String("D", config.DefaultBindDN, "Bind DN")
	password := fs.String("w", "", "Bind password (falls back to $LDAP_PASSWD, then a prompt)")
	var bases stringSliceFlag
	fs.Var(&bases, "b", "Search base DN (repeatable)")
	timeout := timeoutFlag(config.DefaultTimeout)
	fs.Var(&timeout, "t", "Per-search timeout before abandoning (seconds or duration)")
	rounds := fs.Int("r", config.DefaultRounds, "Number of passes over the base DN list")
	filterStr := fs.String("f", config.DefaultFilter, "Search filter")
	logLevel := fs.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", config.DefaultLogFormat, "Log format: text, json")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printProbeUsage(p.stdout)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(p.stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	// Flags given on the command line override the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "H":
			cfg.Server.URL = *url
		case "D":
			cfg.Server.BindDN = *bindDN
		case "w":
			cfg.Server.Password = *password
		case "b":
			cfg.Search.BaseDNs = bases
		case "t":
			cfg.Search.Timeout = config.Duration(timeout)
		case "r":
			cfg.Search.Rounds = *rounds
		case "f":
			cfg.Search.Filter = *filterStr
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		}
	})

	// Remaining positional arguments select the attributes to request
	if attrs := fs.Args(); len(attrs) > 0 {
		cfg.Search.Attributes = attrs
	}

	if cfg.Server.Password == "" {
		if envPassword := p.getenv(passwordEnvVar); envPassword != "" {
			cfg.Server.Password = envPassword
		} else {
			fmt.Fprint(p.stdout, "Password: ")
			pw, err := p.passwordReader.ReadPassword()
			if err != nil {
				fmt.Fprintf(p.stderr, "Error: cannot read password: %v\n", err)
				return 1
			}
			fmt.Fprintln(p.stdout)
			cfg.Server.Password = pw
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(p.stderr, "Error: %v\n", err)
		return 1
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: p.stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := p.runDriver(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(p.stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(p.stdout,
		"probe complete: %d searches, %d entries, %d references, %d timeouts, %d abandons, %d rounds in %s\n",
		stats.Searches, stats.Entries, stats.References,
		stats.Timeouts, stats.Abandons, stats.Rounds,
		time.Since(start).Round(time.Millisecond))

	return 0
}
