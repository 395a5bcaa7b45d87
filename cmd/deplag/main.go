// Command deplag rewrites text files with synonyms, in order and resumably.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/deplag/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
