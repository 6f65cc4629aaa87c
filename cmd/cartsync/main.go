// Command cartsync runs cart tabs, inspects the Local Store and the remote
// cart, serves a fake cart API and runs harness scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cartsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
