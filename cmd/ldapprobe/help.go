package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `ldapprobe - Asynchronous LDAP search prober

Usage:
  ldapprobe [options] [attributes...]
  ldapprobe <command> [options]

Commands:
  probe       Bind and sweep the configured base DNs (default)
  version     Show version information

Use "ldapprobe <command> -h" for more information about a command.
`)
}

// printProbeUsage prints the probe command usage.
func printProbeUsage(w io.Writer) {
	fmt.Fprint(w, `Bind to an LDAP server and run timed one-level searches

Usage:
  ldapprobe probe [options] [attributes...]

Options:
  -config string
        Path to YAML configuration file
  -H string
        LDAP server URL (default "ldap://127.0.0.1:10389")
  -D string
        Bind DN (default "login")
  -w string
        Bind password
  -b value
        Search base DN, repeatable (default "cn=fds,ou=tre")
  -t value
        Per-search timeout before abandoning, as seconds or a
        duration like 250ms (default 1s)
  -r int
        Number of passes over the base DN list (default 1)
  -f string
        Search filter (default "(objectclass=*)")
  -log-level string
        Log level: debug, info, warn, error (default "info")
  -log-format string
        Log format: text, json (default "text")
  -h, -help
        Show this help message

Positional arguments select the attributes to request from each entry.

Environment Variables:
  LDAP_PASSWD    Bind password, used when -w is absent

Exit status is 0 when the sweep completes, even if every search timed
out; timed-out searches are abandoned and counted. Connect and bind
failures exit non-zero.
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  ldapprobe version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
