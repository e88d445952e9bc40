// Package main provides the entry point for the ldapprobe CLI.
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	exitCode := run(os.Args)
	os.Exit(exitCode)
}

// run executes the CLI and returns an exit code.
// This is separated from main() to facilitate testing.
func run(args []string) int {
	if len(args) < 2 {
		return newProbeCmdImpl().probeCmd(nil)
	}

	switch args[1] {
	case "probe":
		return newProbeCmdImpl().probeCmd(args[2:])
	case "version":
		return versionCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return 0
	default:
		// Bare flags run the probe directly, matching the classic
		// single-command invocation.
		if strings.HasPrefix(args[1], "-") {
			return newProbeCmdImpl().probeCmd(args[1:])
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(os.Stderr, "Run 'ldapprobe help' for usage.")
		return 1
	}
}
