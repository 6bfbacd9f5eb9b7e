// Command pkasolver predicts pKa microstate profiles and trains, serves and
// queues the regressor ensemble behind them.
package main

import (
	"context"
	"os"

	"github.com/turtacn/pkasolver/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

//Personal.AI order the ending
