// Command ownc infers parameter access modes for CUE-described programs
// and emits target code with the borrows, copies and moves they need.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ownc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
