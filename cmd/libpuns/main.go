// Command libpuns runs and drives a distributed-object networking
// server: the TCP director, the account store, and a demo client for
// interacting with a running server from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/MultiDragon/libpuns/cmd/libpuns/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
