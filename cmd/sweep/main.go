// Command sweep maps a parameter grid onto output directories and runs the
// simulator for one directory at a time on behalf of a workflow scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sweep/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
