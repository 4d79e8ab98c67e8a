// Command jsbridge runs, evaluates and serves JavaScript on an embedded
// engine.
package main

import (
	"fmt"
	"os"

	"github.com/cryguy/jsbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
