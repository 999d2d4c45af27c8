package main

import (
	"os"

	"github.com/creachadair/pipenode/cmd/pipenode/commands"
	"github.com/creachadair/pipenode/internal/printer"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := commands.NewRootCmd(commands.VersionInfo{Version: version, Commit: commit, Date: date})
	if err := root.Execute(); err != nil {
		printer.Error(os.Stderr, err)
		os.Exit(1)
	}
}
