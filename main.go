// Package main is the entry point for s4, a syslog search and merge tool.
package main

import (
	"github.com/jtmoon79/s4/cmd"
)

// version, commit, and date are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
