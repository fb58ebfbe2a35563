// Command tadad runs only the sync server, for hosts that never need the
// interactive client.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Makepad-fr/tada/internal/cli"
	"github.com/Makepad-fr/tada/internal/config"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tadad:", err)
		os.Exit(2)
	}
	if flag.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "tadad: unexpected arguments:", flag.Args())
		os.Exit(2)
	}
	os.Exit(cli.Run([]string{"serve"}, cfg))
}
