// Command pa-report reconciles the EDAX and ImageJ particle lists of a PA
// search and writes an interactive HTML report.
package main

import (
	"context"
	"os"

	"github.com/ironsheep/pa-report/cmd/pa-report/cmd"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	app := cmd.New(Version, BuildTime, GitCommit)

	ctx, cancel := cmd.ContextWithSignals(context.Background())
	defer cancel()

	if err := app.Execute(ctx, os.Args[1:]); err != nil {
		cancel()
		cmd.ExitOnError(err)
	}
}
