// Command posscan runs the scan station and its scenario tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/posscan/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "posscan:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
