// Command graphone-broker runs the agent worker broker and the local bridge
// the desktop UI connects to.
package main

import (
	"context"
	"os"

	_ "go.uber.org/automaxprocs"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
