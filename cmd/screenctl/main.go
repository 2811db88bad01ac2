// Command screenctl is the local command line for the screening engine.
package main

import (
	"fmt"
	"os"

	"github.com/mkweli/amlscreen/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "screenctl: %v\n", err)
		os.Exit(1)
	}
}
