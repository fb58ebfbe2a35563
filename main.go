package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Makepad-fr/tada/internal/cli"
	"github.com/Makepad-fr/tada/internal/config"
)

func main() {
	// Root flags apply to every subcommand; config files and env fill the rest.
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tada:", err)
		os.Exit(2)
	}

	// Hand the remaining args to the CLI runner.
	code := cli.Run(flag.Args(), cfg)
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
