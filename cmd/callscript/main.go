// callscript deploys call scenarios, routing rules and applications.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/callscript/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "callscript:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
