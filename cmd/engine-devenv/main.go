// Package main is the entry point for the engine-devenv CLI.
//
// All functionality lives in internal/cli. Build-time variables are
// injected via ldflags (-X main.version=...).
package main

import (
	"github.com/shinji-kodama/engine-devenv/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
